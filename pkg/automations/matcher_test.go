package automations

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/models"
)

func buildAutomation(name string, active bool, triggers []models.TriggerType, keywords []string, posts []string) models.Automation {
	a := models.Automation{
		ID:     uuid.New(),
		Name:   name,
		Active: active,
	}
	for _, t := range triggers {
		a.Triggers = append(a.Triggers, models.Trigger{Type: t})
	}
	for _, w := range keywords {
		a.Keywords = append(a.Keywords, models.Keyword{Word: w})
	}
	for _, p := range posts {
		a.Posts = append(a.Posts, models.Post{PostID: p})
	}
	return a
}

func TestMatch(t *testing.T) {
	dmEvent := func(text string) *models.InboundEvent {
		return &models.InboundEvent{Type: models.TriggerDM, AccountID: "acct", SenderID: "user", Text: text}
	}

	tests := []struct {
		name        string
		automations []models.Automation
		event       *models.InboundEvent
		want        string // automation name, "" for no match
	}{
		{
			name: "keyword contained in message",
			automations: []models.Automation{
				buildAutomation("price", true, []models.TriggerType{models.TriggerDM}, []string{"price"}, nil),
			},
			event: dmEvent("what is the price of this?"),
			want:  "price",
		},
		{
			name: "inactive automation never fires",
			automations: []models.Automation{
				buildAutomation("price", false, []models.TriggerType{models.TriggerDM}, []string{"price"}, nil),
			},
			event: dmEvent("what is the price of this?"),
			want:  "",
		},
		{
			name: "trigger type must match the event",
			automations: []models.Automation{
				buildAutomation("comments only", true, []models.TriggerType{models.TriggerComment}, []string{"price"}, nil),
			},
			event: dmEvent("price?"),
			want:  "",
		},
		{
			name: "matching is case sensitive",
			automations: []models.Automation{
				buildAutomation("price", true, []models.TriggerType{models.TriggerDM}, []string{"Price"}, nil),
			},
			event: dmEvent("what is the price?"),
			want:  "",
		},
		{
			name: "substring inside a longer word still matches",
			automations: []models.Automation{
				buildAutomation("win", true, []models.TriggerType{models.TriggerDM}, []string{"win"}, nil),
			},
			event: dmEvent("the winner is announced friday"),
			want:  "win",
		},
		{
			name: "first automation in stored order wins",
			automations: []models.Automation{
				buildAutomation("first", true, []models.TriggerType{models.TriggerDM}, []string{"hello"}, nil),
				buildAutomation("second", true, []models.TriggerType{models.TriggerDM}, []string{"hello"}, nil),
			},
			event: dmEvent("hello there"),
			want:  "first",
		},
		{
			name: "ineligible entries are skipped, not short-circuited",
			automations: []models.Automation{
				buildAutomation("paused", false, []models.TriggerType{models.TriggerDM}, []string{"hello"}, nil),
				buildAutomation("live", true, []models.TriggerType{models.TriggerDM}, []string{"hello"}, nil),
			},
			event: dmEvent("hello there"),
			want:  "live",
		},
		{
			name: "empty keyword never matches",
			automations: []models.Automation{
				buildAutomation("blank", true, []models.TriggerType{models.TriggerDM}, []string{""}, nil),
			},
			event: dmEvent("anything at all"),
			want:  "",
		},
		{
			name: "comment scoped to a watched post",
			automations: []models.Automation{
				buildAutomation("giveaway", true, []models.TriggerType{models.TriggerComment}, []string{"enter"}, []string{"post-1"}),
			},
			event: &models.InboundEvent{Type: models.TriggerComment, PostID: "post-1", Text: "enter me please"},
			want:  "giveaway",
		},
		{
			name: "comment on an unwatched post is ignored",
			automations: []models.Automation{
				buildAutomation("giveaway", true, []models.TriggerType{models.TriggerComment}, []string{"enter"}, []string{"post-1"}),
			},
			event: &models.InboundEvent{Type: models.TriggerComment, PostID: "post-2", Text: "enter me please"},
			want:  "",
		},
		{
			name: "automation with no posts watches every post",
			automations: []models.Automation{
				buildAutomation("catch-all", true, []models.TriggerType{models.TriggerComment}, []string{"enter"}, nil),
			},
			event: &models.InboundEvent{Type: models.TriggerComment, PostID: "post-9", Text: "enter me please"},
			want:  "catch-all",
		},
		{
			name: "comment without a post id skips the post filter",
			automations: []models.Automation{
				buildAutomation("giveaway", true, []models.TriggerType{models.TriggerComment}, []string{"enter"}, []string{"post-1"}),
			},
			event: &models.InboundEvent{Type: models.TriggerComment, Text: "enter me please"},
			want:  "giveaway",
		},
		{
			name:        "no automations",
			automations: nil,
			event:       dmEvent("hello"),
			want:        "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Match(tt.automations, tt.event)
			if tt.want == "" {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Name)
		})
	}
}
