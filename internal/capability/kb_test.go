package capability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"testing"

	"github.com/rsclarke/aiconnect/internal/api"
	"github.com/rsclarke/aiconnect/internal/auth"
	"github.com/rsclarke/aiconnect/internal/envelope"
	"github.com/rsclarke/aiconnect/internal/provider"
)

func TestKBLifecycle(t *testing.T) {
	docs := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("refund policy: 30 days"))
	}))
	defer docs.Close()

	fb := newFakeBackend()
	s := newTestService(t, fb)
	sess := testSession("openai", auth.KB)
	ctx := context.Background()
	req := envelope.Request{ReqID: "r1", ReqCode: "c1"}

	kb, err := s.KBInit(ctx, sess, api.KBInitRequest{ReqID: "r1", ReqCode: "c1", Name: "Support"})
	if err != nil {
		t.Fatalf("KBInit failed: %v", err)
	}
	if kb.KBUID == "" || kb.Name != "Support" || kb.XPlatformID != "openai" {
		t.Fatalf("unexpected kb %+v", kb)
	}
	if ref := parseRef(string(kb.XPRef)); ref.VectorStoreID == "" {
		t.Errorf("expected vector store ref, got %s", kb.XPRef)
	}

	stores, err := s.ListKB(ctx, sess, req)
	if err != nil {
		t.Fatalf("ListKB failed: %v", err)
	}
	if len(stores) != 1 || stores[0].KBUID != kb.KBUID {
		t.Errorf("unexpected stores %+v", stores)
	}

	file, err := s.UploadKBFile(ctx, sess, api.KBFileUploadRequest{KBUID: kb.KBUID, FileName: "policy.txt", FileURL: docs.URL + "/policy.txt"})
	if err != nil {
		t.Fatalf("UploadKBFile failed: %v", err)
	}
	if string(fb.uploaded["policy.txt"]) != "refund policy: 30 days" {
		t.Errorf("unexpected upload %q", fb.uploaded["policy.txt"])
	}
	fileID := parseRef(string(file.XPRef)).FileID

	files, err := s.ListKBFiles(ctx, sess, kb.KBUID, req)
	if err != nil {
		t.Fatalf("ListKBFiles failed: %v", err)
	}
	if len(files) != 1 || files[0].FileName != "policy.txt" {
		t.Errorf("unexpected files %+v", files)
	}

	mapped, err := s.AttachKBFiles(ctx, sess, api.KBVectorStoreFileRequest{KBUID: kb.KBUID, FileID: fileID})
	if err != nil {
		t.Fatalf("AttachKBFiles failed: %v", err)
	}
	if !slices.Equal(mapped.FileIDs, []string{fileID}) {
		t.Errorf("expected FileId fallback, got %v", mapped.FileIDs)
	}
	if len(fb.attached) != 1 || fb.attached[0] != mapped.VectorStoreID+"/"+fileID {
		t.Errorf("unexpected attachments %v", fb.attached)
	}
	if _, err := s.DetachKBFiles(ctx, sess, api.KBVectorStoreFileRequest{KBUID: kb.KBUID, FileIDs: []string{fileID, " "}}); err != nil {
		t.Fatalf("DetachKBFiles failed: %v", err)
	}

	asst, err := s.CreateKBAssistant(ctx, sess, api.KBAssistantCreateRequest{KBUID: kb.KBUID, Code: "support-bot", Name: "Support", Instructions: "Answer from the policy."})
	if err != nil {
		t.Fatalf("CreateKBAssistant failed: %v", err)
	}
	if asst.Code != "support-bot" || asst.Name != "Support" || len(asst.XPRef) == 0 {
		t.Errorf("unexpected assistant row %+v", asst)
	}
	if fb.assistant[0].VectorStoreID != mapped.VectorStoreID {
		t.Errorf("expected assistant bound to %s, got %+v", mapped.VectorStoreID, fb.assistant[0])
	}
	_, err = s.CreateKBAssistant(ctx, sess, api.KBAssistantCreateRequest{KBUID: kb.KBUID, Code: "support-bot", Name: "Again", Instructions: "x"})
	requireFailure(t, err, 400, envelope.CodeSessionInitFailed)

	updated, err := s.UpdateKBAssistant(ctx, sess, api.KBAssistantUpdateRequest{Code: "support-bot", Name: "Support v2"})
	if err != nil {
		t.Fatalf("UpdateKBAssistant failed: %v", err)
	}
	if updated.Name != "Support v2" || updated.Instructions != "Answer from the policy." {
		t.Errorf("expected merged update, got %+v", updated)
	}
	if fb.updated[0].Instructions != "" {
		t.Errorf("expected only changed fields sent upstream, got %+v", fb.updated[0])
	}

	list, err := s.ListKBAssistants(ctx, sess, kb.KBUID, req)
	if err != nil {
		t.Fatalf("ListKBAssistants failed: %v", err)
	}
	if len(list) != 1 || list[0].Code != "support-bot" {
		t.Errorf("unexpected assistants %+v", list)
	}

	thread, err := s.KBThread(ctx, sess, api.KBThreadRequest{})
	if err != nil {
		t.Fatalf("KBThread failed: %v", err)
	}
	run, err := s.KBRunMessage(ctx, sess, api.KBRunMessageRequest{ThreadID: thread.ThreadID, AssistantCode: "support-bot", Message: "How long for refunds?"})
	if err != nil {
		t.Fatalf("KBRunMessage failed: %v", err)
	}
	if run.RunID != "run_1" || run.Status != "queued" || run.MessageID == "" {
		t.Errorf("unexpected run %+v", run)
	}
	status, err := s.KBRunStatus(ctx, sess, thread.ThreadID, run.RunID, req)
	if err != nil {
		t.Fatalf("KBRunStatus failed: %v", err)
	}
	if status.Status != "completed" {
		t.Errorf("expected completed, got %s", status.Status)
	}

	fb.messages = []provider.Message{{ID: "msg_9", Role: "assistant", Text: "30 days.", CreatedAt: 1700000000}}
	msgs, err := s.KBMessages(ctx, sess, thread.ThreadID, req)
	if err != nil {
		t.Fatalf("KBMessages failed: %v", err)
	}
	if len(msgs.Messages) != 1 || msgs.Messages[0].Text != "30 days." {
		t.Errorf("unexpected messages %+v", msgs)
	}

	if _, err := s.DeleteKBFile(ctx, sess, strconv.FormatInt(file.ID, 10), req); err != nil {
		t.Fatalf("DeleteKBFile failed: %v", err)
	}
	if _, err := s.DeleteKBAssistant(ctx, sess, "support-bot", req); err != nil {
		t.Fatalf("DeleteKBAssistant failed: %v", err)
	}
	_, err = s.DeleteKBAssistant(ctx, sess, "support-bot", req)
	requireFailure(t, err, 404, CodeKBNotFound)

	if _, err := s.DeleteKB(ctx, sess, kb.KBUID, req); err != nil {
		t.Fatalf("DeleteKB failed: %v", err)
	}
	if !slices.Contains(fb.deleted, mapped.VectorStoreID) {
		t.Errorf("expected vector store deleted, got %v", fb.deleted)
	}
	_, err = s.ListKBFiles(ctx, sess, kb.KBUID, req)
	requireFailure(t, err, 404, CodeKBNotFound)
}

func TestDeleteKBCleansUpstream(t *testing.T) {
	docs := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("doc"))
	}))
	defer docs.Close()

	fb := newFakeBackend()
	s := newTestService(t, fb)
	sess := testSession("openai", auth.KB)
	ctx := context.Background()

	kb, err := s.KBInit(ctx, sess, api.KBInitRequest{})
	if err != nil {
		t.Fatalf("KBInit failed: %v", err)
	}
	if kb.Name != "kb-"+kb.KBUID {
		t.Errorf("expected default name, got %q", kb.Name)
	}
	if _, err := s.UploadKBFile(ctx, sess, api.KBFileUploadRequest{KBUID: kb.KBUID, FileName: "a.txt", FileURL: docs.URL}); err != nil {
		t.Fatalf("UploadKBFile failed: %v", err)
	}
	if _, err := s.CreateKBAssistant(ctx, sess, api.KBAssistantCreateRequest{KBUID: kb.KBUID, Name: "A", Instructions: "B"}); err != nil {
		t.Fatalf("CreateKBAssistant failed: %v", err)
	}

	if _, err := s.DeleteKB(ctx, sess, kb.KBUID, envelope.Request{}); err != nil {
		t.Fatalf("DeleteKB failed: %v", err)
	}
	for _, name := range []string{"delete_assistant", "delete_file", "delete_vector_store"} {
		if fb.Calls(name) != 1 {
			t.Errorf("expected one %s call, got %d", name, fb.Calls(name))
		}
	}
}

func TestKBErrors(t *testing.T) {
	s := newTestService(t, newFakeBackend(), generatorOnly{})
	ctx := context.Background()
	req := envelope.Request{ReqID: "r1"}

	missing := testSession("openai", auth.KB)
	missing.TenantCode = "globex"
	_, err := s.ListKB(ctx, missing, req)
	requireFailure(t, err, 500, envelope.CodeInternalServerError)

	sess := testSession("openai", auth.KB)
	_, err = s.ListKBFiles(ctx, sess, "no-such-kb", req)
	requireFailure(t, err, 404, CodeKBNotFound)

	_, err = s.DeleteKBFile(ctx, sess, "abc", req)
	requireFailure(t, err, 400, envelope.CodeSessionInitFailed)

	_, err = s.DeleteKBFile(ctx, sess, "42", req)
	requireFailure(t, err, 404, CodeKBNotFound)

	_, err = s.AttachKBFiles(ctx, sess, api.KBVectorStoreFileRequest{KBUID: "x"})
	requireFailure(t, err, 400, envelope.CodeSessionInitFailed)

	_, err = s.UpdateKBAssistant(ctx, sess, api.KBAssistantUpdateRequest{Code: "bot"})
	requireFailure(t, err, 400, envelope.CodeSessionInitFailed)

	_, err = s.KBRunMessage(ctx, sess, api.KBRunMessageRequest{ThreadID: "t", AssistantCode: "nobody", Message: "hi"})
	requireFailure(t, err, 404, CodeKBNotFound)

	_, err = s.UploadKBFile(ctx, sess, api.KBFileUploadRequest{KBUID: "x", FileName: "a", FileURL: "ftp://host/a"})
	requireFailure(t, err, 404, CodeKBNotFound)

	google := testSession("googlecloud", auth.KB)
	_, err = s.KBInit(ctx, google, api.KBInitRequest{})
	requireFailure(t, err, 400, envelope.CodePlatformUnsupported)
	_, err = s.DeleteKB(ctx, google, "x", req)
	requireFailure(t, err, 400, envelope.CodePlatformUnsupported)
}
