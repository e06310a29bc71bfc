package splitter

import (
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// LanguageRegistry maps language names and file extensions to tree-sitter
// grammars.
type LanguageRegistry struct {
	mu        sync.RWMutex
	grammars  map[string]*sitter.Language
	extToLang map[string]string
}

// NewLanguageRegistry creates a registry with the default grammars.
func NewLanguageRegistry() *LanguageRegistry {
	r := &LanguageRegistry{
		grammars:  make(map[string]*sitter.Language),
		extToLang: make(map[string]string),
	}

	r.register("go", golang.GetLanguage(), ".go")
	r.register("javascript", javascript.GetLanguage(), ".js", ".jsx", ".mjs", ".cjs")
	r.register("typescript", typescript.GetLanguage(), ".ts")
	r.register("tsx", tsx.GetLanguage(), ".tsx")
	r.register("python", python.GetLanguage(), ".py", ".pyi")

	return r
}

func (r *LanguageRegistry) register(name string, lang *sitter.Language, exts ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.grammars[name] = lang
	for _, ext := range exts {
		r.extToLang[ext] = name
	}
}

// Grammar returns the tree-sitter grammar for a language name.
func (r *LanguageRegistry) Grammar(name string) (*sitter.Language, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lang, ok := r.grammars[name]
	return lang, ok
}

// LanguageForExtension returns the language name for a file extension.
func (r *LanguageRegistry) LanguageForExtension(ext string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	name, ok := r.extToLang[ext]
	return name, ok
}

// DetectLanguage returns the language name for a file path, or "" when no
// grammar covers it. Markdown is reported even though it has no grammar;
// the structural splitter routes it to the heading splitter.
func DetectLanguage(path string) string {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".md"), strings.HasSuffix(lower, ".mdx"), strings.HasSuffix(lower, ".markdown"):
		return "markdown"
	}
	idx := strings.LastIndex(lower, ".")
	if idx < 0 {
		return ""
	}
	if name, ok := defaultRegistry.LanguageForExtension(lower[idx:]); ok {
		return name
	}
	return ""
}

var defaultRegistry = NewLanguageRegistry()

// DefaultRegistry returns the process-wide language registry.
func DefaultRegistry() *LanguageRegistry {
	return defaultRegistry
}
