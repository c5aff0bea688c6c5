// Package prompt builds the instructions sent to text-generation backends.
package prompt

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Categories are the sentiment labels models are asked to use.
var Categories = []string{"Strongly Negative", "Slightly Negative", "Neutral", "Slightly Positive", "Strongly Positive"}

func AutoDisposition(conversation string, dispositions []string) string {
	return fmt.Sprintf(`You are an AI assistant. Classify the conversation below into one of the following categories: %s.

Conversation:
%s

Respond with only one category name from the list above, without explanation.`, strings.Join(dispositions, ","), conversation)
}

func Sentiment(message string) string {
	return `You are a sentiment analysis assistant.

Evaluate the sentiment of the following message and return **only** a sentiment score between -1.0 and 1.0

Do not include any explanation, label, or additional text. Only return the numeric score.

Message:
` + message
}

func SentenceSentiment(message string) string {
	return fmt.Sprintf(`You are a sentiment analysis assistant.

Split the following message into individual sentences. For each sentence, evaluate its sentiment and return a JSON object where:

- The key is the sentence number (starting from 1).
- The value is an object containing:
  - "Category": the sentiment category as one of %s
  - "Score": a numeric value between -1.0 and 1.0 indicating the sentiment score

Strict formatting requirements:
- Return ONLY a valid JSON object that can be parsed by a strict JSON parser.
- Do NOT include any explanation, commentary, labels, or markdown code fences.
- Do NOT include trailing commas or comments.
- If the message is empty or contains no valid sentences, return {}.

Message:
%s`, quotedList(Categories, ", ", "or "), message)
}

// SentimentTextChat asks for per-speaker sentiment over a speaker->text map.
func SentimentTextChat(messages map[string]string) string {
	input, _ := json.Marshal(messages)
	return fmt.Sprintf(`You are a sentiment analysis assistant.

You will be given a JSON object. Each key represents a user or speaker identifier (e.g., "user1", "customer", "agent"). The value for each key is a string containing that speaker's message(s), which may include multiple sentences.

Your task is to:
1. Analyze the entire message for each speaker and return an overall sentiment category and score.
2. Split the message into individual sentences and return sentiment for each.
3. Return a JSON object where each key corresponds to the speaker and contains:
   - "OverallCategory": one of [%s]
   - "OverallScore": a number between -1.0 and 1.0
   - "SentenceScore": an object where each key is the sentence number (starting from 1) and each value includes "Category" and "Score"

Important: Return **only** the valid JSON object. Do not include any explanation, commentary or markdown code fences.

Input:%s`, quotedList(Categories, ", ", ""), input)
}

func Translation(message, to, from string) string {
	if strings.TrimSpace(from) == "" {
		return fmt.Sprintf("Detect the language of the following text, then translate it into %s. Only return the translated text:\n\n%s", to, message)
	}
	return fmt.Sprintf("Translate the following text from %s to %s. Only return the translated text:\n\n%s", from, to, message)
}

// SpeechLanguage rewrites message into the language of languageCode before synthesis.
func SpeechLanguage(message, languageCode string) string {
	return fmt.Sprintf(`Translate the following text to the language represented by the code '%s'.
Return only the translated sentence, no additional explanation or formatting.
Note: If the language code represents a regional variant like 'en-IN', keep the text as same.
Text: "%s"`, languageCode, message)
}

// QuestionAnswer is a rating question with its allowed answers.
type QuestionAnswer struct {
	Question string   `json:"question"`
	Answers  []string `json:"answers"`
}

// ValidInsights lists the insight sections a caller may request, in prompt order.
var ValidInsights = []string{"Summary", "KeywordCount", "Takeaway", "NextAction", "Rating", "Sentiment", "Disposition"}

// Insight asks for a JSON object containing the allowed insight sections.
// An empty allowed list selects every section.
func Insight(message string, allowed, dispositions []string, qa []QuestionAnswer) string {
	if len(allowed) == 0 {
		allowed = ValidInsights
	}

	var sections []string
	for _, name := range allowed {
		if s := insightSection(name, dispositions, qa); s != "" {
			sections = append(sections, s)
		}
	}

	return fmt.Sprintf(`You are an AI assistant specialized in conversation analysis and insight extraction.

Analyze the following message or conversation carefully. Extract high-level insights that would help a business better understand customer intent, mood, and next steps.

Respond strictly in the following JSON format:
{
  %s
}

IMPORTANT: Return ONLY the JSON. Do not add commentary, explanation or markdown code fences. Output must parse correctly in strict JSON parsers.

Message:
%s`, strings.Join(sections, ",\n  "), message)
}

func insightSection(name string, dispositions []string, qa []QuestionAnswer) string {
	switch name {
	case "Summary":
		return `"Summary": "A short paragraph summarizing the overall message."`
	case "KeywordCount":
		return `"KeywordCount": {
      "<keyword1>": <count>,
      "<keyword2>": <count>
    }`
	case "Takeaway":
		return `"Takeaway": {
      "Customer": [ {"<customerSpeakerKey>": "takeaway for this speaker"} ],
      "Agent": [ {"<agentSpeakerKey>": "takeaway for this speaker"} ]
    }`
	case "NextAction":
		return `"NextAction": "A recommended action or response that should follow this message."`
	case "Rating":
		return ratingSection(qa)
	case "Sentiment":
		return fmt.Sprintf(`"Sentiment": {
      "OverallCategory": "one of: %s",
      "OverallScore": "number between -1.0 and 1.0"
    }`, strings.Join(Categories, " | "))
	case "Disposition":
		return fmt.Sprintf(`"Disposition": "One of: %s"`, strings.Join(dispositions, " | "))
	}
	return ""
}

func ratingSection(qa []QuestionAnswer) string {
	if len(qa) == 0 {
		return `"Rating": "Number between 1 and 5 representing the overall tone or experience."`
	}

	lines := make([]string, 0, len(qa))
	for _, q := range qa {
		lines = append(lines, fmt.Sprintf(`          %q: "Choose exactly one: %s"`, q.Question, strings.Join(q.Answers, " | ")))
	}
	body := strings.Join(lines, ",\n")
	return fmt.Sprintf(`"Rating": {
      "Customer": [ { "<customerSpeakerKey>": {
%s
        } } ],
      "Agent": [ { "<agentSpeakerKey>": {
%s
        } } ]
    }`, body, body)
}

func quotedList(items []string, sep, lastPrefix string) string {
	q := make([]string, len(items))
	for i, s := range items {
		q[i] = `"` + s + `"`
	}
	if lastPrefix != "" && len(q) > 1 {
		q[len(q)-1] = lastPrefix + q[len(q)-1]
	}
	return strings.Join(q, sep)
}
