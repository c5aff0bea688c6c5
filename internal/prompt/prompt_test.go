package prompt

import (
	"strings"
	"testing"
)

func TestTranslation(t *testing.T) {
	tests := []struct {
		name string
		from string
		want string
	}{
		{"auto detect", "", "Detect the language of the following text, then translate it into French."},
		{"blank from", "  ", "Detect the language"},
		{"explicit", "English", "Translate the following text from English to French."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Translation("hello", "French", tt.from)
			if !strings.Contains(got, tt.want) {
				t.Errorf("expected %q in %q", tt.want, got)
			}
			if !strings.HasSuffix(got, "hello") {
				t.Errorf("expected message at end, got %q", got)
			}
		})
	}
}

func TestInsightSections(t *testing.T) {
	got := Insight("hi", []string{"Summary", "Disposition"}, []string{"Sale", "NoSale"}, nil)

	if !strings.Contains(got, `"Summary"`) {
		t.Error("expected Summary section")
	}
	if !strings.Contains(got, `"Disposition": "One of: Sale | NoSale"`) {
		t.Error("expected Disposition section with list")
	}
	if strings.Contains(got, `"Rating"`) {
		t.Error("expected Rating to be excluded")
	}
}

func TestInsightAllSectionsByDefault(t *testing.T) {
	got := Insight("hi", nil, nil, nil)
	for _, name := range ValidInsights {
		if !strings.Contains(got, `"`+name+`"`) {
			t.Errorf("expected section %s", name)
		}
	}
}

func TestInsightRatingQuestions(t *testing.T) {
	got := Insight("hi", []string{"Rating"}, nil, []QuestionAnswer{
		{Question: "Was the agent polite?", Answers: []string{"Yes", "No"}},
	})
	if !strings.Contains(got, `"Was the agent polite?": "Choose exactly one: Yes | No"`) {
		t.Errorf("expected rating question, got %s", got)
	}
	if !strings.Contains(got, "<agentSpeakerKey>") {
		t.Error("expected agent block")
	}
}

func TestSentimentTextChatEmbedsJSON(t *testing.T) {
	got := SentimentTextChat(map[string]string{"agent": "Hello", "customer": "Bad \"service\""})
	if !strings.Contains(got, `Input:{"agent":"Hello","customer":"Bad \"service\""}`) {
		t.Errorf("expected JSON input, got %s", got)
	}
}

func TestAutoDisposition(t *testing.T) {
	got := AutoDisposition("A: hi", []string{"Sale", "Callback"})
	if !strings.Contains(got, "categories: Sale,Callback.") {
		t.Errorf("unexpected prompt %s", got)
	}
}
