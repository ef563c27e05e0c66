package display

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Present-participle forms for common imperative verbs, including the
// ones the suffix rules get wrong (e.g. "setup", "visit").
var ingForms = map[string]string{
	"add": "Adding", "apply": "Applying", "audit": "Auditing", "benchmark": "Benchmarking",
	"build": "Building", "bump": "Bumping", "check": "Checking", "clean": "Cleaning",
	"clear": "Clearing", "clone": "Cloning", "close": "Closing", "commit": "Committing",
	"configure": "Configuring", "connect": "Connecting", "convert": "Converting", "copy": "Copying",
	"create": "Creating", "debug": "Debugging", "delete": "Deleting", "deploy": "Deploying",
	"detect": "Detecting", "disable": "Disabling", "drop": "Dropping", "enable": "Enabling",
	"enforce": "Enforcing", "ensure": "Ensuring", "execute": "Executing", "export": "Exporting",
	"extend": "Extending", "extract": "Extracting", "fetch": "Fetching", "filter": "Filtering",
	"find": "Finding", "fix": "Fixing", "format": "Formatting", "generate": "Generating",
	"get": "Getting", "handle": "Handling", "implement": "Implementing", "import": "Importing",
	"improve": "Improving", "index": "Indexing", "initialize": "Initializing", "inject": "Injecting",
	"install": "Installing", "integrate": "Integrating", "introduce": "Introducing", "investigate": "Investigating",
	"launch": "Launching", "lint": "Linting", "list": "Listing", "load": "Loading",
	"make": "Making", "manage": "Managing", "merge": "Merging", "migrate": "Migrating",
	"minimize": "Minimizing", "mock": "Mocking", "modify": "Modifying", "monitor": "Monitoring",
	"move": "Moving", "normalize": "Normalizing", "open": "Opening", "optimize": "Optimizing",
	"orchestrate": "Orchestrating", "override": "Overriding", "parse": "Parsing", "patch": "Patching",
	"plan": "Planning", "poll": "Polling", "prevent": "Preventing", "process": "Processing",
	"profile": "Profiling", "provision": "Provisioning", "publish": "Publishing", "pull": "Pulling",
	"push": "Pushing", "read": "Reading", "rebuild": "Rebuilding", "reduce": "Reducing",
	"refactor": "Refactoring", "refresh": "Refreshing", "register": "Registering", "release": "Releasing",
	"reload": "Reloading", "remove": "Removing", "rename": "Renaming", "render": "Rendering",
	"replace": "Replacing", "report": "Reporting", "request": "Requesting", "require": "Requiring",
	"reset": "Resetting", "resolve": "Resolving", "restart": "Restarting", "restore": "Restoring",
	"restructure": "Restructuring", "retry": "Retrying", "return": "Returning", "revert": "Reverting",
	"review": "Reviewing", "revoke": "Revoking", "rewrite": "Rewriting", "run": "Running",
	"save": "Saving", "scaffold": "Scaffolding", "scan": "Scanning", "schedule": "Scheduling",
	"search": "Searching", "secure": "Securing", "seed": "Seeding", "send": "Sending",
	"serve": "Serving", "set": "Setting", "setup": "Setting up", "ship": "Shipping",
	"show": "Showing", "simplify": "Simplifying", "skip": "Skipping", "sort": "Sorting",
	"split": "Splitting", "start": "Starting", "stop": "Stopping", "store": "Storing",
	"stream": "Streaming", "strip": "Stripping", "stub": "Stubbing", "submit": "Submitting",
	"support": "Supporting", "suppress": "Suppressing", "swap": "Swapping", "sync": "Syncing",
	"tag": "Tagging", "test": "Testing", "throttle": "Throttling", "toggle": "Toggling",
	"trace": "Tracing", "track": "Tracking", "transform": "Transforming", "trigger": "Triggering",
	"trim": "Trimming", "truncate": "Truncating", "type": "Typing", "unblock": "Unblocking",
	"undo": "Undoing", "uninstall": "Uninstalling", "unlink": "Unlinking", "unlock": "Unlocking",
	"unwrap": "Unwrapping", "update": "Updating", "upgrade": "Upgrading", "upload": "Uploading",
	"validate": "Validating", "verify": "Verifying", "version": "Versioning", "watch": "Watching",
	"wire": "Wiring", "wrap": "Wrapping", "write": "Writing",
}

// Leading words that name a thing rather than an action ("Core refactor"
// stays as is).
var nounPrefixes = map[string]bool{
	"api": true, "app": true, "auth": true, "aws": true, "base": true, "ci": true, "cli": true,
	"config": true, "core": true, "css": true, "data": true, "db": true, "dev": true, "dns": true,
	"docker": true, "dom": true, "env": true, "error": true, "file": true, "git": true, "gql": true,
	"graphql": true, "html": true, "http": true, "i18n": true, "json": true, "jwt": true, "k8s": true,
	"key": true, "log": true, "mcp": true, "model": true, "node": true, "npm": true, "oauth": true,
	"orm": true, "package": true, "page": true, "php": true, "pr": true, "queue": true, "react": true,
	"redis": true, "rest": true, "route": true, "rpc": true, "schema": true, "sdk": true, "server": true,
	"service": true, "sql": true, "ssh": true, "ssl": true, "state": true, "style": true, "tcp": true,
	"tls": true, "token": true, "ts": true, "ui": true, "url": true, "user": true, "vue": true,
	"webpack": true, "xml": true, "yaml": true,
}

// ActiveForm turns an imperative title into its present-continuous form
// for status lines: "Fix login bug" becomes "Fixing login bug". Titles led
// by a noun, or already in -ing form, are returned trimmed but otherwise
// unchanged. Whitespace between words collapses to single spaces when the
// title is rewritten.
func ActiveForm(title string) string {
	trimmed := strings.TrimSpace(title)
	words := strings.Fields(trimmed)
	if len(words) == 0 {
		return ""
	}

	first := words[0]
	lower := strings.ToLower(first)
	if nounPrefixes[lower] {
		return trimmed
	}

	var head string
	if form, ok := ingForms[lower]; ok {
		head = form
	} else {
		if strings.HasSuffix(lower, "ing") && len(lower) > 4 {
			return trimmed
		}
		head = capitalize(withIng(first))
	}

	return strings.Join(append([]string{head}, words[1:]...), " ")
}

const vowels = "aeiou"

// withIng applies the spelling rules for -ing: "ie" becomes "ying",
// "ee"/"ye"/"oe" keep their e, a silent e is dropped, and short
// consonant-vowel-consonant words double the final consonant.
func withIng(verb string) string {
	lower := strings.ToLower(verb)
	n := len(lower)

	switch {
	case strings.HasSuffix(lower, "ie"):
		return verb[:len(verb)-2] + "ying"
	case strings.HasSuffix(lower, "ee"), strings.HasSuffix(lower, "ye"), strings.HasSuffix(lower, "oe"):
		return verb + "ing"
	case strings.HasSuffix(lower, "e") && n > 2:
		return verb[:len(verb)-1] + "ing"
	}

	if n >= 2 && n <= 5 {
		last, prev := lower[n-1], lower[n-2]
		if !strings.ContainsRune(vowels, rune(last)) &&
			!strings.ContainsRune("wxy", rune(last)) &&
			strings.ContainsRune(vowels, rune(prev)) {
			return verb + string(verb[len(verb)-1]) + "ing"
		}
	}
	return verb + "ing"
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
