package capability

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rsclarke/aiconnect/internal/api"
	"github.com/rsclarke/aiconnect/internal/auth"
	"github.com/rsclarke/aiconnect/internal/db"
	"github.com/rsclarke/aiconnect/internal/envelope"
	"github.com/rsclarke/aiconnect/internal/models"
	"github.com/rsclarke/aiconnect/internal/provider"
)

const (
	CodeKBInitSuccess                = "KBInitSuccess"
	CodeGetKbSuccess                 = "GetKbSuccess"
	CodeKbFileGetSuccess             = "KbFileGetSuccess"
	CodeKbFileUploadSuccess          = "KbFileUploadSuccess"
	CodeKbFileDeleteSuccess          = "KbFileDeleteSuccess"
	CodeDeleteKbSuccess              = "DeleteKbSuccess"
	CodeAssistantDeleteSuccess       = "AssistantDeleteSuccess"
	CodeVectorStoreFileSuccess       = "VectorStoreFileSuccess"
	CodeVectorstoreFileDeleteSuccess = "VectorstoreFileDeleteSuccess"
	CodeAssistantCreationSuccess     = "AssistantCreationSuccess"
	CodeAssistantUpdateSuccess       = "AssistantUpdateSuccess"
	CodeGetAssistantsSuccess         = "GetAssistantsSuccess"
	CodeKBThreadCreationSuccess      = "KBThreadCreationSuccess"
	CodeKBRunMessageSuccess          = "KBRunMessageSuccess"
	CodeKBGetRunStatusSuccess        = "KBGetRunStatusSuccess"
	CodeKBGetMessagesSuccess         = "KBGetMessagesSuccess"
	CodeKBNotFound                   = "KbNotFound"

	MsgKBInitSuccess                = "KB Init successfully"
	MsgGetKbSuccess                 = "KB fetched successfully"
	MsgKbFileGetSuccess             = "KB File fetched successfully"
	MsgKbFileUploadSuccess          = "KB file uploaded successfully"
	MsgKbFileDeleteSuccess          = "KB File deleted successfully"
	MsgDeleteKbSuccess              = "KB deleted successfully"
	MsgAssistantDeleteSuccess       = "Assistant deleted successfully"
	MsgVectorStoreFileSuccess       = "KB VectorStore file mapped successfully"
	MsgVectorstoreFileDeleteSuccess = "KB VectorStore file mapping deleted successfully"
	MsgAssistantCreationSuccess     = "KB Assistant created successfully"
	MsgAssistantUpdateSuccess       = "KB Assistant updated successfully"
	MsgGetAssistantsSuccess         = "KB Assistants fetched successfully"
	MsgKBThreadCreationSuccess      = "KB Thread created successfully"
	MsgKBRunMessageSuccess          = "KB Run message completed successfully"
	MsgKBGetRunStatusSuccess        = "KB Get run status completed successfully"
	MsgKBGetMessagesSuccess         = "KB Get messages completed successfully"

	MsgKBInitFailed              = "KB init failed"
	MsgKBFetchFailed             = "KB fetch failed"
	MsgKbFileFetchFailed         = "KB File fetch failed"
	MsgKbFileUploadFailed        = "KB File Upload Error:"
	MsgKBDeleteFailed            = "KB delete failed"
	MsgKbFileDeleteFailed        = "KB File delete failed"
	MsgVectorStoreFileFailed     = "KB VectorStore file mapping failed"
	MsgVectorStoreFileDelFailed  = "KB VectorStore file mapping delete failed"
	MsgAssistantCreationFailed   = "KB Assistant creation failed"
	MsgGetAssistantsFailed       = "KB assistants fetch failed"
	MsgAssistantUpdateFailed     = "KB Assistant update setting failed"
	MsgAssistantDeleteFailed     = "KB Assistant delete failed"
	MsgKBThreadCreationFailed    = "KB Thread creation failed"
	MsgKBRunMessageFailed        = "KB Run message failed"
	MsgKBGetRunStatusFailed      = "KB Get run status failed"
	MsgKBGetMessagesFailed       = "KB Get messages failed"
	MsgTenantDatabaseUnavailable = "Tenant database is not available"
	MsgKBNotFound                = "KB not found"
	MsgKbFileNotFound            = "KB File not found"
	MsgAssistantNotFound         = "KB Assistant not found"
)

// kbRef is the provider-side identity stored in a row's xp_ref column.
type kbRef struct {
	VectorStoreID string `json:"VectorStoreId,omitempty"`
	FileID        string `json:"FileId,omitempty"`
	AssistantID   string `json:"AssistantId,omitempty"`
}

func parseRef(raw string) kbRef {
	var r kbRef
	_ = json.Unmarshal([]byte(raw), &r)
	return r
}

func (r kbRef) String() string {
	b, _ := json.Marshal(r)
	return string(b)
}

func formatUnix(sec int64) string {
	if sec == 0 {
		return ""
	}
	return time.Unix(sec, 0).Format(envelope.TimeLayout)
}

func storeDTO(st models.KBStore) api.KBStore {
	return api.KBStore{
		ID:          st.ID,
		KBUID:       st.KBUID,
		Name:        st.Name,
		XPlatformID: st.XPlatformID,
		XPRef:       json.RawMessage(parseRef(st.XPRef).String()),
		CreatedOn:   formatUnix(st.CreatedOn),
		EditedOn:    formatUnix(st.EditedOn),
	}
}

func fileDTO(kbuid string, f models.KBFile) api.KBFile {
	return api.KBFile{
		ID:        f.ID,
		KBUID:     kbuid,
		FileName:  f.FileName,
		FileURL:   f.FileURL,
		XPRef:     json.RawMessage(parseRef(f.XPRef).String()),
		CreatedOn: formatUnix(f.CreatedOn),
	}
}

func assistantDTO(a models.KBAssistant) api.KBAssistant {
	return api.KBAssistant{
		ID:           a.ID,
		Code:         a.Code,
		Name:         a.Name,
		Instructions: a.Instructions,
		XPRef:        json.RawMessage(parseRef(a.XPRef).String()),
		CreatedOn:    formatUnix(a.CreatedOn),
		EditedOn:     formatUnix(a.EditedOn),
	}
}

func assistants[R any](ctx context.Context, s *Service, sess *auth.Session, fn func(context.Context, provider.Assistants) (R, error)) (R, error) {
	return provider.Call(ctx, s.providers.Assistants, sess.XPlatformID, fn)
}

func (s *Service) tenantDB(sess *auth.Session, req envelope.Request) (*sql.DB, error) {
	if s.tenants != nil {
		if d, ok := s.tenants.DB(sess.TenantCode); ok {
			return d, nil
		}
	}
	return nil, envelope.Fail(http.StatusInternalServerError, MsgTenantDatabaseUnavailable, envelope.CodeInternalServerError, req)
}

// actor is the tenant backend id recorded in created_by and edited_by.
func (s *Service) actor(sess *auth.Session) *string {
	if s.tenants == nil {
		return nil
	}
	info, ok := s.tenants.Info(sess.TenantCode)
	if !ok || info.ID == "" {
		return nil
	}
	return &info.ID
}

func (s *Service) requireAssistants(sess *auth.Session, req envelope.Request) error {
	p, err := provider.ParsePlatform(sess.XPlatformID)
	if err == nil {
		if _, ok := s.providers.Assistants.Lookup(p); ok {
			return nil
		}
	}
	return envelope.Fail(http.StatusBadRequest, envelope.MsgPlatformUnsupported, envelope.CodePlatformUnsupported, req)
}

func (s *Service) loadStore(ctx context.Context, d *sql.DB, kbuid, failMsg string, req envelope.Request) (*models.KBStore, error) {
	if err := envelope.Required(req, "KBUID", kbuid); err != nil {
		return nil, err
	}
	st, err := db.GetKBStoreByUID(ctx, d, kbuid)
	if err != nil {
		return nil, internalFault(err, failMsg, req)
	}
	if st == nil {
		return nil, envelope.Fail(http.StatusNotFound, MsgKBNotFound, CodeKBNotFound, req)
	}
	return st, nil
}

// KBInit creates a knowledge base backed by a new provider vector store.
func (s *Service) KBInit(ctx context.Context, sess *auth.Session, b api.KBInitRequest) (*api.KBStore, error) {
	req := envelope.Request{ReqID: b.ReqID, ReqCode: b.ReqCode}
	d, err := s.tenantDB(sess, req)
	if err != nil {
		return nil, err
	}

	kbuid := uuid.NewString()
	name := b.Name
	if name == "" {
		name = "kb-" + kbuid
	}
	vsID, err := assistants(ctx, s, sess, func(ctx context.Context, a provider.Assistants) (string, error) {
		return a.CreateVectorStore(ctx, sess.XPlatformUA, name)
	})
	if err != nil {
		return nil, upstream(err, MsgKBInitFailed, envelope.CodeInternalServerError, req)
	}

	platform := strings.ToLower(sess.XPlatformID)
	ref := kbRef{VectorStoreID: vsID}.String()
	if _, err := db.CreateKBStore(ctx, d, kbuid, name, platform, ref, s.actor(sess)); err != nil {
		return nil, internalFault(err, MsgKBInitFailed, req)
	}
	st, err := db.GetKBStoreByUID(ctx, d, kbuid)
	if err != nil || st == nil {
		return nil, internalFault(err, MsgKBInitFailed, req)
	}
	out := storeDTO(*st)
	return &out, nil
}

func (s *Service) ListKB(ctx context.Context, sess *auth.Session, req envelope.Request) ([]api.KBStore, error) {
	d, err := s.tenantDB(sess, req)
	if err != nil {
		return nil, err
	}
	stores, err := db.ListKBStores(ctx, d)
	if err != nil {
		return nil, internalFault(err, MsgKBFetchFailed, req)
	}
	out := make([]api.KBStore, 0, len(stores))
	for _, st := range stores {
		out = append(out, storeDTO(st))
	}
	return out, nil
}

// DeleteKB removes the provider assistants, files and vector store of a
// knowledge base, each on a best-effort basis, then its rows.
func (s *Service) DeleteKB(ctx context.Context, sess *auth.Session, kbuid string, req envelope.Request) (*api.KBDeleteResponse, error) {
	d, err := s.tenantDB(sess, req)
	if err != nil {
		return nil, err
	}
	if err := s.requireAssistants(sess, req); err != nil {
		return nil, err
	}
	st, err := s.loadStore(ctx, d, kbuid, MsgKBDeleteFailed, req)
	if err != nil {
		return nil, err
	}

	asst, err := db.ListKBAssistants(ctx, d, st.ID)
	if err != nil {
		return nil, internalFault(err, MsgKBDeleteFailed, req)
	}
	files, err := db.ListKBFiles(ctx, d, st.ID)
	if err != nil {
		return nil, internalFault(err, MsgKBDeleteFailed, req)
	}

	for _, a := range asst {
		if id := parseRef(a.XPRef).AssistantID; id != "" {
			s.bestEffort(ctx, sess, "assistant", id, func(ctx context.Context, p provider.Assistants) error {
				return p.DeleteAssistant(ctx, sess.XPlatformUA, id)
			})
		}
	}
	for _, f := range files {
		if id := parseRef(f.XPRef).FileID; id != "" {
			s.bestEffort(ctx, sess, "file", id, func(ctx context.Context, p provider.Assistants) error {
				return p.DeleteFile(ctx, sess.XPlatformUA, id)
			})
		}
	}
	if id := parseRef(st.XPRef).VectorStoreID; id != "" {
		s.bestEffort(ctx, sess, "vector store", id, func(ctx context.Context, p provider.Assistants) error {
			return p.DeleteVectorStore(ctx, sess.XPlatformUA, id)
		})
	}

	if err := db.DeleteKBStore(ctx, d, kbuid); err != nil {
		return nil, internalFault(err, MsgKBDeleteFailed, req)
	}
	return &api.KBDeleteResponse{ID: kbuid}, nil
}

func (s *Service) bestEffort(ctx context.Context, sess *auth.Session, kind, id string, fn func(context.Context, provider.Assistants) error) {
	_, err := assistants(ctx, s, sess, func(ctx context.Context, a provider.Assistants) (struct{}, error) {
		return struct{}{}, fn(ctx, a)
	})
	if err != nil {
		s.logger.Warn("kb upstream cleanup failed", zap.String("kind", kind), zap.String("id", id), zap.Error(err))
	}
}

// UploadKBFile downloads FileURL and uploads it to the provider for use by assistants.
func (s *Service) UploadKBFile(ctx context.Context, sess *auth.Session, b api.KBFileUploadRequest) (*api.KBFile, error) {
	req := envelope.Request{ReqID: b.ReqID, ReqCode: b.ReqCode}
	if err := envelope.Required(req, "KBUID", b.KBUID, "FileName", b.FileName, "FileURL", b.FileURL); err != nil {
		return nil, err
	}
	d, err := s.tenantDB(sess, req)
	if err != nil {
		return nil, err
	}
	st, err := s.loadStore(ctx, d, b.KBUID, MsgKbFileUploadFailed, req)
	if err != nil {
		return nil, err
	}

	data, err := provider.Download(ctx, s.http, b.FileURL)
	if err != nil {
		if errors.Is(err, provider.ErrBadURL) {
			return nil, envelope.Invalid("FileURL must be an http or https URL", req).WithCause(err)
		}
		return nil, upstream(err, MsgKbFileUploadFailed, envelope.CodeInternalServerError, req)
	}
	fileID, err := assistants(ctx, s, sess, func(ctx context.Context, a provider.Assistants) (string, error) {
		return a.UploadFile(ctx, sess.XPlatformUA, b.FileName, data)
	})
	if err != nil {
		return nil, upstream(err, MsgKbFileUploadFailed, envelope.CodeInternalServerError, req)
	}

	id, err := db.CreateKBFile(ctx, d, st.ID, b.FileName, b.FileURL, kbRef{FileID: fileID}.String(), s.actor(sess))
	if err != nil {
		return nil, internalFault(err, MsgKbFileUploadFailed, req)
	}
	f, err := db.GetKBFile(ctx, d, id)
	if err != nil || f == nil {
		return nil, internalFault(err, MsgKbFileUploadFailed, req)
	}
	out := fileDTO(st.KBUID, *f)
	return &out, nil
}

// ListKBFiles lists the files of the knowledge base kbuid.
func (s *Service) ListKBFiles(ctx context.Context, sess *auth.Session, kbuid string, req envelope.Request) ([]api.KBFile, error) {
	d, err := s.tenantDB(sess, req)
	if err != nil {
		return nil, err
	}
	st, err := s.loadStore(ctx, d, kbuid, MsgKbFileFetchFailed, req)
	if err != nil {
		return nil, err
	}
	files, err := db.ListKBFiles(ctx, d, st.ID)
	if err != nil {
		return nil, internalFault(err, MsgKbFileFetchFailed, req)
	}
	out := make([]api.KBFile, 0, len(files))
	for _, f := range files {
		out = append(out, fileDTO(st.KBUID, f))
	}
	return out, nil
}

// DeleteKBFile deletes the file row id and its provider file.
func (s *Service) DeleteKBFile(ctx context.Context, sess *auth.Session, id string, req envelope.Request) (*api.KBDeleteResponse, error) {
	rowID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return nil, envelope.Invalid("id must be a number", req)
	}
	d, err := s.tenantDB(sess, req)
	if err != nil {
		return nil, err
	}
	f, err := db.GetKBFile(ctx, d, rowID)
	if err != nil {
		return nil, internalFault(err, MsgKbFileDeleteFailed, req)
	}
	if f == nil {
		return nil, envelope.Fail(http.StatusNotFound, MsgKbFileNotFound, CodeKBNotFound, req)
	}

	if fileID := parseRef(f.XPRef).FileID; fileID != "" {
		_, err := assistants(ctx, s, sess, func(ctx context.Context, a provider.Assistants) (struct{}, error) {
			return struct{}{}, a.DeleteFile(ctx, sess.XPlatformUA, fileID)
		})
		if err != nil {
			return nil, upstream(err, MsgKbFileDeleteFailed, envelope.CodeInternalServerError, req)
		}
	}
	if err := db.DeleteKBFile(ctx, d, rowID); err != nil {
		return nil, internalFault(err, MsgKbFileDeleteFailed, req)
	}
	return &api.KBDeleteResponse{ID: id}, nil
}

func vectorStoreFileIDs(b api.KBVectorStoreFileRequest) []string {
	var ids []string
	for _, id := range b.FileIDs {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 && strings.TrimSpace(b.FileID) != "" {
		ids = []string{strings.TrimSpace(b.FileID)}
	}
	return ids
}

// AttachKBFiles adds uploaded provider files to the knowledge base vector store.
func (s *Service) AttachKBFiles(ctx context.Context, sess *auth.Session, b api.KBVectorStoreFileRequest) (*api.KBVectorStoreFileResponse, error) {
	return s.mapKBFiles(ctx, sess, b, MsgVectorStoreFileFailed, func(ctx context.Context, a provider.Assistants, vsID, fileID string) error {
		return a.AttachFile(ctx, sess.XPlatformUA, vsID, fileID)
	})
}

// DetachKBFiles removes files from the knowledge base vector store.
func (s *Service) DetachKBFiles(ctx context.Context, sess *auth.Session, b api.KBVectorStoreFileRequest) (*api.KBVectorStoreFileResponse, error) {
	return s.mapKBFiles(ctx, sess, b, MsgVectorStoreFileDelFailed, func(ctx context.Context, a provider.Assistants, vsID, fileID string) error {
		return a.DetachFile(ctx, sess.XPlatformUA, vsID, fileID)
	})
}

func (s *Service) mapKBFiles(ctx context.Context, sess *auth.Session, b api.KBVectorStoreFileRequest, failMsg string, fn func(context.Context, provider.Assistants, string, string) error) (*api.KBVectorStoreFileResponse, error) {
	req := envelope.Request{ReqID: b.ReqID, ReqCode: b.ReqCode}
	ids := vectorStoreFileIDs(b)
	if len(ids) == 0 {
		return nil, envelope.Invalid("FileIds should not be empty", req)
	}
	d, err := s.tenantDB(sess, req)
	if err != nil {
		return nil, err
	}
	st, err := s.loadStore(ctx, d, b.KBUID, failMsg, req)
	if err != nil {
		return nil, err
	}
	vsID := parseRef(st.XPRef).VectorStoreID
	if vsID == "" {
		return nil, internalFault(fmt.Errorf("kb %s has no vector store", st.KBUID), failMsg, req)
	}

	for _, fileID := range ids {
		_, err := assistants(ctx, s, sess, func(ctx context.Context, a provider.Assistants) (struct{}, error) {
			return struct{}{}, fn(ctx, a, vsID, fileID)
		})
		if err != nil {
			return nil, upstream(err, failMsg, envelope.CodeInternalServerError, req)
		}
	}
	return &api.KBVectorStoreFileResponse{KBUID: st.KBUID, VectorStoreID: vsID, FileIDs: ids}, nil
}

// CreateKBAssistant creates an assistant that searches the knowledge base.
func (s *Service) CreateKBAssistant(ctx context.Context, sess *auth.Session, b api.KBAssistantCreateRequest) (*api.KBAssistant, error) {
	req := envelope.Request{ReqID: b.ReqID, ReqCode: b.ReqCode}
	if err := envelope.Required(req, "KBUID", b.KBUID, "Name", b.Name, "Instructions", b.Instructions); err != nil {
		return nil, err
	}
	d, err := s.tenantDB(sess, req)
	if err != nil {
		return nil, err
	}
	st, err := s.loadStore(ctx, d, b.KBUID, MsgAssistantCreationFailed, req)
	if err != nil {
		return nil, err
	}

	code := strings.TrimSpace(b.Code)
	if code == "" {
		code = uuid.NewString()
	}
	existing, err := db.GetKBAssistantByCode(ctx, d, code)
	if err != nil {
		return nil, internalFault(err, MsgAssistantCreationFailed, req)
	}
	if existing != nil {
		return nil, envelope.Invalid("Assistant code already exists", req)
	}

	assistantID, err := assistants(ctx, s, sess, func(ctx context.Context, a provider.Assistants) (string, error) {
		return a.CreateAssistant(ctx, sess.XPlatformUA, provider.AssistantSpec{
			Name:          b.Name,
			Instructions:  b.Instructions,
			VectorStoreID: parseRef(st.XPRef).VectorStoreID,
		})
	})
	if err != nil {
		return nil, upstream(err, MsgAssistantCreationFailed, envelope.CodeInternalServerError, req)
	}

	if _, err := db.CreateKBAssistant(ctx, d, st.ID, code, b.Name, b.Instructions, kbRef{AssistantID: assistantID}.String(), s.actor(sess)); err != nil {
		return nil, internalFault(err, MsgAssistantCreationFailed, req)
	}
	return s.assistantByCode(ctx, d, code, MsgAssistantCreationFailed, req)
}

func (s *Service) assistantByCode(ctx context.Context, d *sql.DB, code, failMsg string, req envelope.Request) (*api.KBAssistant, error) {
	a, err := db.GetKBAssistantByCode(ctx, d, code)
	if err != nil {
		return nil, internalFault(err, failMsg, req)
	}
	if a == nil {
		return nil, envelope.Fail(http.StatusNotFound, MsgAssistantNotFound, CodeKBNotFound, req)
	}
	out := assistantDTO(*a)
	return &out, nil
}

func (s *Service) ListKBAssistants(ctx context.Context, sess *auth.Session, kbuid string, req envelope.Request) ([]api.KBAssistant, error) {
	d, err := s.tenantDB(sess, req)
	if err != nil {
		return nil, err
	}
	st, err := s.loadStore(ctx, d, kbuid, MsgGetAssistantsFailed, req)
	if err != nil {
		return nil, err
	}
	list, err := db.ListKBAssistants(ctx, d, st.ID)
	if err != nil {
		return nil, internalFault(err, MsgGetAssistantsFailed, req)
	}
	out := make([]api.KBAssistant, 0, len(list))
	for _, a := range list {
		out = append(out, assistantDTO(a))
	}
	return out, nil
}

// UpdateKBAssistant changes the name or instructions of an assistant. Empty
// fields keep their current value.
func (s *Service) UpdateKBAssistant(ctx context.Context, sess *auth.Session, b api.KBAssistantUpdateRequest) (*api.KBAssistant, error) {
	req := envelope.Request{ReqID: b.ReqID, ReqCode: b.ReqCode}
	if err := envelope.Required(req, "Code", b.Code); err != nil {
		return nil, err
	}
	if b.Name == "" && b.Instructions == "" {
		return nil, envelope.Invalid("Name or Instructions should not be empty", req)
	}
	d, err := s.tenantDB(sess, req)
	if err != nil {
		return nil, err
	}
	current, err := db.GetKBAssistantByCode(ctx, d, b.Code)
	if err != nil {
		return nil, internalFault(err, MsgAssistantUpdateFailed, req)
	}
	if current == nil {
		return nil, envelope.Fail(http.StatusNotFound, MsgAssistantNotFound, CodeKBNotFound, req)
	}

	if id := parseRef(current.XPRef).AssistantID; id != "" {
		_, err := assistants(ctx, s, sess, func(ctx context.Context, a provider.Assistants) (struct{}, error) {
			return struct{}{}, a.UpdateAssistant(ctx, sess.XPlatformUA, id, provider.AssistantSpec{Name: b.Name, Instructions: b.Instructions})
		})
		if err != nil {
			return nil, upstream(err, MsgAssistantUpdateFailed, envelope.CodeInternalServerError, req)
		}
	}

	name, instructions := current.Name, current.Instructions
	if b.Name != "" {
		name = b.Name
	}
	if b.Instructions != "" {
		instructions = b.Instructions
	}
	if err := db.UpdateKBAssistant(ctx, d, b.Code, name, instructions, s.actor(sess)); err != nil {
		return nil, internalFault(err, MsgAssistantUpdateFailed, req)
	}
	return s.assistantByCode(ctx, d, b.Code, MsgAssistantUpdateFailed, req)
}

// DeleteKBAssistant deletes the assistant with the given code.
func (s *Service) DeleteKBAssistant(ctx context.Context, sess *auth.Session, code string, req envelope.Request) (*api.KBDeleteResponse, error) {
	d, err := s.tenantDB(sess, req)
	if err != nil {
		return nil, err
	}
	current, err := db.GetKBAssistantByCode(ctx, d, code)
	if err != nil {
		return nil, internalFault(err, MsgAssistantDeleteFailed, req)
	}
	if current == nil {
		return nil, envelope.Fail(http.StatusNotFound, MsgAssistantNotFound, CodeKBNotFound, req)
	}
	if id := parseRef(current.XPRef).AssistantID; id != "" {
		_, err := assistants(ctx, s, sess, func(ctx context.Context, a provider.Assistants) (struct{}, error) {
			return struct{}{}, a.DeleteAssistant(ctx, sess.XPlatformUA, id)
		})
		if err != nil {
			return nil, upstream(err, MsgAssistantDeleteFailed, envelope.CodeInternalServerError, req)
		}
	}
	if err := db.DeleteKBAssistant(ctx, d, code); err != nil {
		return nil, internalFault(err, MsgAssistantDeleteFailed, req)
	}
	return &api.KBDeleteResponse{ID: code}, nil
}

func (s *Service) KBThread(ctx context.Context, sess *auth.Session, b api.KBThreadRequest) (*api.KBThreadResponse, error) {
	req := envelope.Request{ReqID: b.ReqID, ReqCode: b.ReqCode}
	id, err := assistants(ctx, s, sess, func(ctx context.Context, a provider.Assistants) (string, error) {
		return a.CreateThread(ctx, sess.XPlatformUA)
	})
	if err != nil {
		return nil, upstream(err, MsgKBThreadCreationFailed, envelope.CodeInternalServerError, req)
	}
	return &api.KBThreadResponse{ThreadID: id}, nil
}

// KBRunMessage posts a message to a thread and starts a run of the
// knowledge-base assistant. Callers poll KBRunStatus for completion.
func (s *Service) KBRunMessage(ctx context.Context, sess *auth.Session, b api.KBRunMessageRequest) (*api.KBRunResponse, error) {
	req := envelope.Request{ReqID: b.ReqID, ReqCode: b.ReqCode}
	if err := envelope.Required(req, "ThreadId", b.ThreadID, "AssistantCode", b.AssistantCode, "Message", b.Message); err != nil {
		return nil, err
	}
	d, err := s.tenantDB(sess, req)
	if err != nil {
		return nil, err
	}
	asst, err := db.GetKBAssistantByCode(ctx, d, b.AssistantCode)
	if err != nil {
		return nil, internalFault(err, MsgKBRunMessageFailed, req)
	}
	if asst == nil {
		return nil, envelope.Fail(http.StatusNotFound, MsgAssistantNotFound, CodeKBNotFound, req)
	}
	assistantID := parseRef(asst.XPRef).AssistantID

	msgID, err := assistants(ctx, s, sess, func(ctx context.Context, a provider.Assistants) (string, error) {
		return a.AddMessage(ctx, sess.XPlatformUA, b.ThreadID, b.Message)
	})
	if err != nil {
		return nil, upstream(err, MsgKBRunMessageFailed, envelope.CodeInternalServerError, req)
	}
	run, err := assistants(ctx, s, sess, func(ctx context.Context, a provider.Assistants) (provider.Run, error) {
		return a.CreateRun(ctx, sess.XPlatformUA, b.ThreadID, assistantID)
	})
	if err != nil {
		return nil, upstream(err, MsgKBRunMessageFailed, envelope.CodeInternalServerError, req)
	}
	return &api.KBRunResponse{ThreadID: b.ThreadID, RunID: run.ID, Status: run.Status, MessageID: msgID}, nil
}

func (s *Service) KBRunStatus(ctx context.Context, sess *auth.Session, threadID, runID string, req envelope.Request) (*api.KBRunResponse, error) {
	if err := envelope.Required(req, "ThreadId", threadID, "RunId", runID); err != nil {
		return nil, err
	}
	run, err := assistants(ctx, s, sess, func(ctx context.Context, a provider.Assistants) (provider.Run, error) {
		return a.GetRun(ctx, sess.XPlatformUA, threadID, runID)
	})
	if err != nil {
		return nil, upstream(err, MsgKBGetRunStatusFailed, envelope.CodeInternalServerError, req)
	}
	return &api.KBRunResponse{ThreadID: threadID, RunID: run.ID, Status: run.Status}, nil
}

func (s *Service) KBMessages(ctx context.Context, sess *auth.Session, threadID string, req envelope.Request) (*api.KBMessagesResponse, error) {
	if err := envelope.Required(req, "ThreadId", threadID); err != nil {
		return nil, err
	}
	msgs, err := assistants(ctx, s, sess, func(ctx context.Context, a provider.Assistants) ([]provider.Message, error) {
		return a.ListMessages(ctx, sess.XPlatformUA, threadID)
	})
	if err != nil {
		return nil, upstream(err, MsgKBGetMessagesFailed, envelope.CodeInternalServerError, req)
	}
	out := make([]api.KBMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, api.KBMessage{ID: m.ID, Role: m.Role, Text: m.Text, CreatedAt: m.CreatedAt})
	}
	return &api.KBMessagesResponse{ThreadID: threadID, Messages: out}, nil
}
