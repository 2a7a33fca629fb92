package automations

import (
	"strings"

	"github.com/Ramsey-B/fern/pkg/models"
)

// Match returns the first automation that should fire for the event, or nil.
//
// An automation is eligible when it is active, subscribes to the event's
// trigger type, and (for comments on a known post) either watches no posts or
// watches the commented one. The first eligible automation in stored order
// with a keyword contained in the event text wins; matching is case-sensitive
// with no normalization.
func Match(automations []models.Automation, event *models.InboundEvent) *models.Automation {
	for i := range automations {
		automation := &automations[i]
		if !automation.Active {
			continue
		}
		if !automation.HasTrigger(event.Type) {
			continue
		}
		if event.Type == models.TriggerComment && !watchesPost(automation, event.PostID) {
			continue
		}
		if containsKeyword(automation.Keywords, event.Text) {
			return automation
		}
	}
	return nil
}

func containsKeyword(keywords []models.Keyword, text string) bool {
	for _, keyword := range keywords {
		if keyword.Word == "" {
			continue
		}
		if strings.Contains(text, keyword.Word) {
			return true
		}
	}
	return false
}

// watchesPost reports whether the automation covers comments on the post. An
// automation with no attached posts watches everything.
func watchesPost(automation *models.Automation, postID string) bool {
	if len(automation.Posts) == 0 || postID == "" {
		return true
	}
	for _, post := range automation.Posts {
		if post.PostID == postID {
			return true
		}
	}
	return false
}
