// Package api defines the request and response bodies of the HTTP API.
package api

import "encoding/json"

type SessionInitRequest struct {
	ReqID        string `json:"ReqId"`
	ReqCode      string `json:"ReqCode"`
	XPlatformID  string `json:"XPlatformID"`
	XPlatformSID string `json:"XPlatformSID"`
	XPlatformUA  string `json:"XPlatformUA"`
	TenantCode   string `json:"TenantCode,omitempty"`
}

type SessionResponse struct {
	SessionID string `json:"SessionId"`
	ExpiresIn int64  `json:"ExpiresIn"`
}

type VersionInfo struct {
	ReleaseVersion string `json:"ReleaseVersion"`
	ReleaseDate    string `json:"ReleaseDate"`
	Name           string `json:"Name"`
}

type VersionResponse struct {
	Version VersionInfo `json:"Version"`
}

type HealthResponse struct {
	Text   string `json:"Text"`
	Status int    `json:"Status"`
}

type EncryptRequest struct {
	ReqID   string `json:"ReqId"`
	ReqCode string `json:"ReqCode"`
	Data    string `json:"Data"`
}

type EncryptResponse struct {
	EncryptData string `json:"EncryptData"`
}

// SentimentRequest is read from the query string.
type SentimentRequest struct {
	ReqID         string
	ReqCode       string
	Message       string
	MessageID     string
	UXID          string
	ProcessCode   string
	SentenceScore bool
	OverallScore  bool
}

type SentenceScore struct {
	Category string  `json:"Category"`
	Score    float64 `json:"Score"`
}

type SentimentResponse struct {
	OverallCategory string                   `json:"OverallCategory,omitempty"`
	OverallScore    *float64                 `json:"OverallScore,omitempty"`
	SentenceScore   map[string]SentenceScore `json:"SentenceScore,omitempty"`
	AverageScore    float64                  `json:"AverageScore"`
}

type SentimentTextChatRequest struct {
	ReqID       string            `json:"ReqId"`
	ReqCode     string            `json:"ReqCode"`
	UXID        string            `json:"UXID"`
	MessageID   string            `json:"MessageID"`
	ProcessCode string            `json:"ProcessCode"`
	Message     map[string]string `json:"Message"`
}

type SpeakerSentiment struct {
	OverallCategory string                   `json:"OverallCategory"`
	OverallScore    float64                  `json:"OverallScore"`
	SentenceScore   map[string]SentenceScore `json:"SentenceScore,omitempty"`
}

type SentimentTextChatResponse struct {
	Sentiment    map[string]SpeakerSentiment `json:"Sentiment"`
	AverageScore float64                     `json:"AverageScore"`
}

type SentimentHistoryRequest struct {
	ReqID       string `json:"ReqId"`
	ReqCode     string `json:"ReqCode"`
	UXID        string `json:"UXID"`
	ProcessCode string `json:"ProcessCode"`
}

type SentimentHistoryItem struct {
	MessageID string `json:"MessageID"`
	CachedAt  int64  `json:"CachedAt"`
	SentimentResponse
}

type SentimentHistoryResponse struct {
	History      []SentimentHistoryItem `json:"History"`
	AverageScore float64                `json:"AverageScore"`
}

type DispositionRequest struct {
	ReqID           string   `json:"ReqId"`
	ReqCode         string   `json:"ReqCode"`
	UXID            string   `json:"UXID"`
	ProcessCode     string   `json:"ProcessCode"`
	ConversationID  string   `json:"ConversationID"`
	Conversation    string   `json:"Conversation"`
	DispositionList []string `json:"DispositionList"`
}

type DispositionResponse struct {
	Disposition string `json:"Disposition"`
}

type TranslateRequest struct {
	ReqID       string `json:"ReqId"`
	ReqCode     string `json:"ReqCode"`
	Message     string `json:"Message"`
	MessageID   string `json:"MessageID"`
	UXID        string `json:"UXID"`
	ProcessCode string `json:"ProcessCode"`
	From        string `json:"From,omitempty"`
	To          string `json:"To"`
}

type TranslateResponse struct {
	TranslatedMessage string `json:"TranslatedMessage"`
	From              string `json:"From,omitempty"`
	To                string `json:"To"`
}

type SynthesizeRequest struct {
	ReqID        string  `json:"ReqId"`
	ReqCode      string  `json:"ReqCode"`
	Message      string  `json:"Message"`
	MessageID    string  `json:"MessageID"`
	UXID         string  `json:"UXID"`
	ProcessCode  string  `json:"ProcessCode"`
	VoiceModel   string  `json:"VoiceModel,omitempty"`
	LanguageCode string  `json:"LanguageCode,omitempty"`
	SpeakingRate float64 `json:"SpeakingRate,omitempty"`
}

type SynthesizeResponse struct {
	Audio string `json:"Audio"`
}

// TranscribeRequest is read from the query string.
type TranscribeRequest struct {
	ReqID        string
	ReqCode      string
	AudioURL     string
	MessageID    string
	UXID         string
	ProcessCode  string
	LanguageCode string
}

type TranscribeResponse struct {
	Transcript string `json:"Transcript"`
}

type QuestionAnswer struct {
	Question string   `json:"question"`
	Answers  []string `json:"answers"`
}

// InsightRequest accepts Message as a string or as any JSON value.
type InsightRequest struct {
	ReqID           string           `json:"ReqId"`
	ReqCode         string           `json:"ReqCode"`
	UXID            string           `json:"UXID"`
	MessageID       string           `json:"MessageID"`
	ProcessCode     string           `json:"ProcessCode"`
	Message         json.RawMessage  `json:"Message"`
	AllowedInsights []string         `json:"AllowedInsights,omitempty"`
	DispositionList []string         `json:"DispositionList"`
	QuestionAnswer  []QuestionAnswer `json:"QuestionAnswer"`
}

type InsightResponse struct {
	Insight map[string]any `json:"Insight"`
}

type OpenChatInitRequest struct {
	ReqID       string `json:"ReqId"`
	ReqCode     string `json:"ReqCode"`
	ProcessCode string `json:"ProcessCode,omitempty"`
	ContactID   string `json:"ContactId,omitempty"`
}

type OpenChatInitResponse struct {
	ThreadID    string `json:"ThreadId"`
	AssistantID string `json:"AssistantId"`
}

type OpenChatRequest struct {
	ReqID       string `json:"ReqId"`
	ReqCode     string `json:"ReqCode"`
	Message     string `json:"Message"`
	AssistantID string `json:"AssistantId"`
	ThreadID    string `json:"ThreadId"`
}

type OpenChatResponse struct {
	Reply  string `json:"Reply"`
	RunID  string `json:"RunId"`
	Status string `json:"Status"`
}

type KBInitRequest struct {
	ReqID   string `json:"ReqId"`
	ReqCode string `json:"ReqCode"`
	Name    string `json:"Name,omitempty"`
}

type KBStore struct {
	ID          int64           `json:"Id"`
	KBUID       string          `json:"KBUID"`
	Name        string          `json:"Name,omitempty"`
	XPlatformID string          `json:"XPlatformID"`
	XPRef       json.RawMessage `json:"XPRef"`
	CreatedOn   string          `json:"CreatedOn"`
	EditedOn    string          `json:"EditedOn"`
}

type KBFileUploadRequest struct {
	ReqID    string `json:"ReqId"`
	ReqCode  string `json:"ReqCode"`
	KBUID    string `json:"KBUID"`
	FileName string `json:"FileName"`
	FileURL  string `json:"FileURL"`
}

type KBFile struct {
	ID        int64           `json:"Id"`
	KBUID     string          `json:"KBUID"`
	FileName  string          `json:"FileName"`
	FileURL   string          `json:"FileURL"`
	XPRef     json.RawMessage `json:"XPRef"`
	CreatedOn string          `json:"CreatedOn"`
}

type KBVectorStoreFileRequest struct {
	ReqID   string   `json:"ReqId"`
	ReqCode string   `json:"ReqCode"`
	KBUID   string   `json:"KBUID"`
	FileID  string   `json:"FileId,omitempty"`
	FileIDs []string `json:"FileIds,omitempty"`
}

type KBVectorStoreFileResponse struct {
	KBUID         string   `json:"KBUID"`
	VectorStoreID string   `json:"VectorStoreId"`
	FileIDs       []string `json:"FileIds"`
}

type KBAssistantCreateRequest struct {
	ReqID        string `json:"ReqId"`
	ReqCode      string `json:"ReqCode"`
	KBUID        string `json:"KBUID"`
	Code         string `json:"Code,omitempty"`
	Name         string `json:"Name"`
	Instructions string `json:"Instructions"`
}

type KBAssistantUpdateRequest struct {
	ReqID        string `json:"ReqId"`
	ReqCode      string `json:"ReqCode"`
	Code         string `json:"Code"`
	Name         string `json:"Name,omitempty"`
	Instructions string `json:"Instructions,omitempty"`
}

type KBAssistant struct {
	ID           int64           `json:"Id"`
	Code         string          `json:"Code"`
	Name         string          `json:"Name"`
	Instructions string          `json:"Instructions"`
	XPRef        json.RawMessage `json:"XPRef"`
	CreatedOn    string          `json:"CreatedOn"`
	EditedOn     string          `json:"EditedOn"`
}

type KBDeleteResponse struct {
	ID string `json:"Id"`
}

type KBThreadRequest struct {
	ReqID   string `json:"ReqId"`
	ReqCode string `json:"ReqCode"`
}

type KBThreadResponse struct {
	ThreadID string `json:"ThreadId"`
}

type KBRunMessageRequest struct {
	ReqID         string `json:"ReqId"`
	ReqCode       string `json:"ReqCode"`
	ThreadID      string `json:"ThreadId"`
	AssistantCode string `json:"AssistantCode"`
	Message       string `json:"Message"`
}

type KBRunResponse struct {
	ThreadID  string `json:"ThreadId"`
	RunID     string `json:"RunId"`
	Status    string `json:"Status"`
	MessageID string `json:"MessageId,omitempty"`
}

type KBMessage struct {
	ID        string `json:"Id"`
	Role      string `json:"Role"`
	Text      string `json:"Text"`
	CreatedAt int64  `json:"CreatedAt"`
}

type KBMessagesResponse struct {
	ThreadID string      `json:"ThreadId"`
	Messages []KBMessage `json:"Messages"`
}
