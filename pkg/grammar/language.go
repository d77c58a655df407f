package grammar

// Language identifies one of the grammars the server understands. The set is
// closed: template markup plus the backend/script languages that can carry
// tag definition comments.
type Language int

const (
	LanguageUnknown Language = iota
	LanguageTemplate
	LanguageGo
	LanguagePython
	LanguageRust
	LanguageJavaScript
	LanguageTypeScript
)

func (l Language) String() string {
	switch l {
	case LanguageTemplate:
		return "template"
	case LanguageGo:
		return "go"
	case LanguagePython:
		return "python"
	case LanguageRust:
		return "rust"
	case LanguageJavaScript:
		return "javascript"
	case LanguageTypeScript:
		return "typescript"
	default:
		return "unknown"
	}
}

// BackendLanguage maps the configured backend selector to a language kind.
func BackendLanguage(name string) (Language, bool) {
	switch name {
	case "rust":
		return LanguageRust, true
	case "python":
		return LanguagePython, true
	case "go":
		return LanguageGo, true
	default:
		return LanguageUnknown, false
	}
}

// BackendExtension returns the file extension (without the dot) for a
// backend language kind.
func BackendExtension(l Language) string {
	switch l {
	case LanguageRust:
		return "rs"
	case LanguagePython:
		return "py"
	case LanguageGo:
		return "go"
	default:
		return ""
	}
}
