package ignore

// DefaultPatterns are the built-in exclusion patterns. Workspace .gitignore
// files and user patterns are layered on top.
var DefaultPatterns = []string{
	// VCS internals
	".git/",
	".hg/",
	".svn/",

	// Dependency and build output directories
	"node_modules/",
	"vendor/",
	"bower_components/",
	"dist/",
	"build/",
	"out/",
	"target/",
	"coverage/",
	".next/",
	".nuxt/",

	// Caches and tool state
	"__pycache__/",
	".pytest_cache/",
	".mypy_cache/",
	".ruff_cache/",
	".cache/",
	".gradle/",
	".idea/",
	".vscode/",
	".venv/",
	"venv/",
	".tox/",

	// Minified and bundled assets
	"*.min.js",
	"*.min.css",
	"*.bundle.js",
	"*.map",

	// Binaries and archives
	"*.exe",
	"*.dll",
	"*.so",
	"*.dylib",
	"*.a",
	"*.o",
	"*.class",
	"*.jar",
	"*.war",
	"*.zip",
	"*.tar",
	"*.gz",
	"*.png",
	"*.jpg",
	"*.jpeg",
	"*.gif",
	"*.ico",
	"*.pdf",
	"*.woff",
	"*.woff2",

	// Lockfiles
	"package-lock.json",
	"yarn.lock",
	"pnpm-lock.yaml",
	"Cargo.lock",
	"poetry.lock",
	"go.sum",

	// Logs and local env
	"*.log",
	".env",
	".env.*",
	".DS_Store",
}

// DefaultExtensions is the allowlist of indexable file extensions.
// Lower-cased, with leading dot.
var DefaultExtensions = []string{
	".go",
	".js", ".jsx", ".mjs", ".cjs",
	".ts", ".tsx",
	".py", ".pyi",
	".java", ".kt", ".kts",
	".c", ".h", ".cpp", ".hpp", ".cc", ".cxx",
	".cs",
	".rb",
	".rs",
	".php",
	".swift",
	".scala",
	".sh", ".bash",
	".lua",
	".ex", ".exs",
	".hs",
	".ml",
	".sql",
	".proto",
	".vue", ".svelte",
	".md", ".mdx", ".markdown",
	".yaml", ".yml", ".toml", ".json",
}
