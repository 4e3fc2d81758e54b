// Package prompts loads the persisted prompt templates and renders
// them with named-placeholder substitution.
package prompts

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Required template files, system+user pairs for each operation.
const (
	SysPaperSummary  = "sys_role_paper_sum"
	UserPaperSummary = "user_prompt_paper_sum"
	SysSynthesis     = "sys_role_final_response"
	UserSynthesis    = "user_prompt_final_response"
	SysChat          = "sys_role_chat"
	UserChat         = "user_prompt_chat"
)

var required = []string{
	SysPaperSummary, UserPaperSummary,
	SysSynthesis, UserSynthesis,
	SysChat, UserChat,
}

// Library holds the template texts read once at startup.
type Library struct {
	templates map[string]string
}

// NewLibrary reads every required template from dir. A missing or
// unreadable file fails startup rather than a later request.
func NewLibrary(dir string) (*Library, error) {
	lib := &Library{templates: make(map[string]string, len(required))}
	for _, name := range required {
		data, err := os.ReadFile(filepath.Join(dir, name+".txt"))
		if err != nil {
			return nil, fmt.Errorf("load prompt template %s: %w", name, err)
		}
		lib.templates[name] = string(data)
	}
	return lib, nil
}

// Render substitutes {name} placeholders in the template with vars.
// Unknown placeholders are left intact.
func (l *Library) Render(name string, vars map[string]string) (string, error) {
	tpl, ok := l.templates[name]
	if !ok {
		return "", fmt.Errorf("unknown prompt template %s", name)
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tpl), nil
}

// Text returns a template verbatim, for system prompts with no
// placeholders.
func (l *Library) Text(name string) (string, error) {
	tpl, ok := l.templates[name]
	if !ok {
		return "", fmt.Errorf("unknown prompt template %s", name)
	}
	return tpl, nil
}
