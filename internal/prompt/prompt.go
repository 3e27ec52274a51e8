// Package prompt composes the outbound generation request text. Composition
// is deterministic: identical inputs always produce byte-identical prompts.
package prompt

import (
	"fmt"
	"strings"

	"github.com/slok/pagesmith/internal/model"
)

// revisionMarker prefixes round-2 prompts so the collaborator treats the
// request as a revision of its prior output instead of a fresh build.
const revisionMarker = "REVISION REQUEST: This task revises the website you built in the previous round. Keep the same repository file layout and apply the changes below to your prior output."

// Compose builds the prompt text for one generation call.
func Compose(brief string, round model.Round, checks []string, attachments []model.Attachment) string {
	var b strings.Builder

	if round == model.RoundRevision {
		b.WriteString(revisionMarker)
		b.WriteString("\n\n")
	}

	b.WriteString(strings.TrimSpace(brief))

	if len(checks) > 0 {
		b.WriteString("\n\nThe website MUST satisfy every one of these requirements:\n")
		for i, check := range checks {
			b.WriteString(fmt.Sprintf("%d. %s\n", i+1, check))
		}
	}

	if len(attachments) > 0 {
		b.WriteString("\nIncorporate the following attachments into the website:\n")
		for _, a := range attachments {
			if a.Inline() {
				b.WriteString(fmt.Sprintf("- %s: provided inline as a base64 data URL, it will be committed next to your files, reference it by filename\n", a.Name))
				continue
			}
			b.WriteString(fmt.Sprintf("- %s: external resource at %s\n", a.Name, a.URL))
		}
	}

	return b.String()
}
