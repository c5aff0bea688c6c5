package openai

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	oai "github.com/openai/openai-go"

	"github.com/rsclarke/aiconnect/internal/provider"
)

func (b *Backend) CreateVectorStore(ctx context.Context, creds provider.Credentials, name string) (string, error) {
	c, err := b.client(creds)
	if err != nil {
		return "", err
	}
	vs, err := c.VectorStores.New(ctx, oai.VectorStoreNewParams{Name: oai.String(name)})
	if err != nil {
		return "", fmt.Errorf("create vector store: %w", err)
	}
	return vs.ID, nil
}

func (b *Backend) DeleteVectorStore(ctx context.Context, creds provider.Credentials, id string) error {
	c, err := b.client(creds)
	if err != nil {
		return err
	}
	if _, err := c.VectorStores.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete vector store: %w", err)
	}
	return nil
}

func (b *Backend) UploadFile(ctx context.Context, creds provider.Credentials, name string, data []byte) (string, error) {
	c, err := b.client(creds)
	if err != nil {
		return "", err
	}
	f, err := c.Files.New(ctx, oai.FileNewParams{
		File:    oai.File(bytes.NewReader(data), name, "application/octet-stream"),
		Purpose: oai.FilePurposeAssistants,
	})
	if err != nil {
		return "", fmt.Errorf("upload file: %w", err)
	}
	return f.ID, nil
}

func (b *Backend) DeleteFile(ctx context.Context, creds provider.Credentials, id string) error {
	c, err := b.client(creds)
	if err != nil {
		return err
	}
	if _, err := c.Files.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}

func (b *Backend) AttachFile(ctx context.Context, creds provider.Credentials, vectorStoreID, fileID string) error {
	c, err := b.client(creds)
	if err != nil {
		return err
	}
	if _, err := c.VectorStores.Files.New(ctx, vectorStoreID, oai.VectorStoreFileNewParams{FileID: fileID}); err != nil {
		return fmt.Errorf("attach file: %w", err)
	}
	return nil
}

func (b *Backend) DetachFile(ctx context.Context, creds provider.Credentials, vectorStoreID, fileID string) error {
	c, err := b.client(creds)
	if err != nil {
		return err
	}
	if _, err := c.VectorStores.Files.Delete(ctx, vectorStoreID, fileID); err != nil {
		return fmt.Errorf("detach file: %w", err)
	}
	return nil
}

// CreateAssistant creates an assistant. A vector store binds the file_search tool.
func (b *Backend) CreateAssistant(ctx context.Context, creds provider.Credentials, spec provider.AssistantSpec) (string, error) {
	c, err := b.client(creds)
	if err != nil {
		return "", err
	}
	params := oai.BetaAssistantNewParams{
		Model:        b.cfg.Model,
		Name:         oai.String(spec.Name),
		Instructions: oai.String(spec.Instructions),
	}
	if spec.VectorStoreID != "" {
		params.Tools = []oai.AssistantToolUnionParam{{OfFileSearch: &oai.FileSearchToolParam{}}}
		params.ToolResources.FileSearch.VectorStoreIDs = []string{spec.VectorStoreID}
	}
	a, err := c.Beta.Assistants.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("create assistant: %w", err)
	}
	return a.ID, nil
}

// UpdateAssistant changes the non-empty fields of spec.
func (b *Backend) UpdateAssistant(ctx context.Context, creds provider.Credentials, id string, spec provider.AssistantSpec) error {
	c, err := b.client(creds)
	if err != nil {
		return err
	}
	var params oai.BetaAssistantUpdateParams
	if spec.Name != "" {
		params.Name = oai.String(spec.Name)
	}
	if spec.Instructions != "" {
		params.Instructions = oai.String(spec.Instructions)
	}
	if _, err := c.Beta.Assistants.Update(ctx, id, params); err != nil {
		return fmt.Errorf("update assistant: %w", err)
	}
	return nil
}

func (b *Backend) DeleteAssistant(ctx context.Context, creds provider.Credentials, id string) error {
	c, err := b.client(creds)
	if err != nil {
		return err
	}
	if _, err := c.Beta.Assistants.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete assistant: %w", err)
	}
	return nil
}

func (b *Backend) CreateThread(ctx context.Context, creds provider.Credentials) (string, error) {
	c, err := b.client(creds)
	if err != nil {
		return "", err
	}
	th, err := c.Beta.Threads.New(ctx, oai.BetaThreadNewParams{})
	if err != nil {
		return "", fmt.Errorf("create thread: %w", err)
	}
	return th.ID, nil
}

func (b *Backend) AddMessage(ctx context.Context, creds provider.Credentials, threadID, content string) (string, error) {
	c, err := b.client(creds)
	if err != nil {
		return "", err
	}
	m, err := c.Beta.Threads.Messages.New(ctx, threadID, oai.BetaThreadMessageNewParams{
		Role:    oai.BetaThreadMessageNewParamsRoleUser,
		Content: oai.BetaThreadMessageNewParamsContentUnion{OfString: oai.String(content)},
	})
	if err != nil {
		return "", fmt.Errorf("add message: %w", err)
	}
	return m.ID, nil
}

func (b *Backend) CreateRun(ctx context.Context, creds provider.Credentials, threadID, assistantID string) (provider.Run, error) {
	c, err := b.client(creds)
	if err != nil {
		return provider.Run{}, err
	}
	r, err := c.Beta.Threads.Runs.New(ctx, threadID, oai.BetaThreadRunNewParams{AssistantID: assistantID})
	if err != nil {
		return provider.Run{}, fmt.Errorf("create run: %w", err)
	}
	return provider.Run{ID: r.ID, Status: string(r.Status)}, nil
}

func (b *Backend) GetRun(ctx context.Context, creds provider.Credentials, threadID, runID string) (provider.Run, error) {
	c, err := b.client(creds)
	if err != nil {
		return provider.Run{}, err
	}
	r, err := c.Beta.Threads.Runs.Get(ctx, threadID, runID)
	if err != nil {
		return provider.Run{}, fmt.Errorf("get run: %w", err)
	}
	return provider.Run{ID: r.ID, Status: string(r.Status)}, nil
}

// ListMessages returns the thread's messages, newest first.
func (b *Backend) ListMessages(ctx context.Context, creds provider.Credentials, threadID string) ([]provider.Message, error) {
	c, err := b.client(creds)
	if err != nil {
		return nil, err
	}
	page, err := c.Beta.Threads.Messages.List(ctx, threadID, oai.BetaThreadMessageListParams{
		Order: oai.BetaThreadMessageListParamsOrderDesc,
		Limit: oai.Int(50),
	})
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	out := make([]provider.Message, 0, len(page.Data))
	for _, m := range page.Data {
		var parts []string
		for _, content := range m.Content {
			if content.Type == "text" {
				parts = append(parts, content.Text.Value)
			}
		}
		out = append(out, provider.Message{
			ID:        m.ID,
			Role:      string(m.Role),
			Text:      strings.Join(parts, "\n"),
			CreatedAt: m.CreatedAt,
		})
	}
	return out, nil
}
