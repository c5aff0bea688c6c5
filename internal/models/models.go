// Package models defines the database entity types.
package models

// RevokedToken is an entry in the session token revocation list.
type RevokedToken struct {
	ID        int64
	TokenHash string
	ExpiresAt int64
	RevokedAt int64
}

// KBStore is a tenant knowledge base backed by a provider vector store.
type KBStore struct {
	ID          int64
	KBUID       string
	Name        string
	XPlatformID string
	XPRef       string
	CreatedBy   *string
	EditedBy    *string
	CreatedOn   int64
	EditedOn    int64
}

// KBFile is a document uploaded into a knowledge base.
type KBFile struct {
	ID        int64
	KBStoreID int64
	FileName  string
	FileURL   string
	XPRef     string
	CreatedBy *string
	CreatedOn int64
}

// KBAssistant is a provider assistant bound to a knowledge base.
type KBAssistant struct {
	ID           int64
	KBStoreID    int64
	Code         string
	Name         string
	Instructions string
	XPRef        string
	CreatedBy    *string
	EditedBy     *string
	CreatedOn    int64
	EditedOn     int64
}
