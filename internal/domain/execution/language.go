package execution

import (
	"fmt"
	"strings"
)

// Language identifies the toolchain a Solution is written for.
type Language string

const (
	LanguagePython2 Language = "python2"
	LanguagePython3 Language = "python3"
	LanguageCPP     Language = "cpp"
	LanguageC       Language = "c"
	LanguageGo      Language = "go"
	LanguageJava    Language = "java"
)

var languageAliases = map[string]Language{
	"python":  LanguagePython3,
	"py":      LanguagePython3,
	"py3":     LanguagePython3,
	"py2":     LanguagePython2,
	"c++":     LanguageCPP,
	"cxx":     LanguageCPP,
	"golang":  LanguageGo,
	"python2": LanguagePython2,
	"python3": LanguagePython3,
	"cpp":     LanguageCPP,
	"c":       LanguageC,
	"go":      LanguageGo,
	"java":    LanguageJava,
}

// ParseLanguage resolves a user supplied language tag, accepting common aliases.
func ParseLanguage(raw string) (Language, error) {
	lang, ok := languageAliases[strings.ToLower(strings.TrimSpace(raw))]
	if !ok {
		return "", fmt.Errorf("unknown language %q", raw)
	}
	return lang, nil
}
