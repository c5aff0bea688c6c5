package server

import (
	"net/http"
	"strings"

	"github.com/rsclarke/aiconnect/internal/api"
	"github.com/rsclarke/aiconnect/internal/auth"
	"github.com/rsclarke/aiconnect/internal/capability"
	"github.com/rsclarke/aiconnect/internal/envelope"
)

func (s *APIServer) handleKBInit(w http.ResponseWriter, r *http.Request) {
	var b api.KBInitRequest
	if !s.decode(w, r, &b) {
		return
	}
	req := envelope.Request{ReqID: b.ReqID, ReqCode: b.ReqCode}
	serve(s, w, r, auth.KB, req, capability.MsgKBInitSuccess, capability.CodeKBInitSuccess,
		func(sess *auth.Session) (*api.KBStore, error) {
			return s.Capabilities.KBInit(r.Context(), sess, b)
		})
}

func (s *APIServer) handleListKB(w http.ResponseWriter, r *http.Request) {
	req := queryRequest(r)
	serve(s, w, r, auth.KB, req, capability.MsgGetKbSuccess, capability.CodeGetKbSuccess,
		func(sess *auth.Session) ([]api.KBStore, error) {
			return s.Capabilities.ListKB(r.Context(), sess, req)
		})
}

func (s *APIServer) handleDeleteKB(w http.ResponseWriter, r *http.Request) {
	req := queryRequest(r)
	serve(s, w, r, auth.KB, req, capability.MsgDeleteKbSuccess, capability.CodeDeleteKbSuccess,
		func(sess *auth.Session) (*api.KBDeleteResponse, error) {
			return s.Capabilities.DeleteKB(r.Context(), sess, r.PathValue("id"), req)
		})
}

func (s *APIServer) handleUploadKBFile(w http.ResponseWriter, r *http.Request) {
	var b api.KBFileUploadRequest
	if !s.decode(w, r, &b) {
		return
	}
	req := envelope.Request{ReqID: b.ReqID, ReqCode: b.ReqCode}
	serve(s, w, r, auth.KB, req, capability.MsgKbFileUploadSuccess, capability.CodeKbFileUploadSuccess,
		func(sess *auth.Session) (*api.KBFile, error) {
			return s.Capabilities.UploadKBFile(r.Context(), sess, b)
		})
}

func (s *APIServer) handleListKBFiles(w http.ResponseWriter, r *http.Request) {
	req := queryRequest(r)
	serve(s, w, r, auth.KB, req, capability.MsgKbFileGetSuccess, capability.CodeKbFileGetSuccess,
		func(sess *auth.Session) ([]api.KBFile, error) {
			return s.Capabilities.ListKBFiles(r.Context(), sess, r.PathValue("id"), req)
		})
}

func (s *APIServer) handleDeleteKBFile(w http.ResponseWriter, r *http.Request) {
	req := queryRequest(r)
	serve(s, w, r, auth.KB, req, capability.MsgKbFileDeleteSuccess, capability.CodeKbFileDeleteSuccess,
		func(sess *auth.Session) (*api.KBDeleteResponse, error) {
			return s.Capabilities.DeleteKBFile(r.Context(), sess, r.PathValue("id"), req)
		})
}

func (s *APIServer) handleAttachKBFiles(w http.ResponseWriter, r *http.Request) {
	var b api.KBVectorStoreFileRequest
	if !s.decode(w, r, &b) {
		return
	}
	req := envelope.Request{ReqID: b.ReqID, ReqCode: b.ReqCode}
	serve(s, w, r, auth.KB, req, capability.MsgVectorStoreFileSuccess, capability.CodeVectorStoreFileSuccess,
		func(sess *auth.Session) (*api.KBVectorStoreFileResponse, error) {
			return s.Capabilities.AttachKBFiles(r.Context(), sess, b)
		})
}

func (s *APIServer) handleDetachKBFiles(w http.ResponseWriter, r *http.Request) {
	var b api.KBVectorStoreFileRequest
	if !s.decode(w, r, &b) {
		return
	}
	req := envelope.Request{ReqID: b.ReqID, ReqCode: b.ReqCode}
	serve(s, w, r, auth.KB, req, capability.MsgVectorstoreFileDeleteSuccess, capability.CodeVectorstoreFileDeleteSuccess,
		func(sess *auth.Session) (*api.KBVectorStoreFileResponse, error) {
			return s.Capabilities.DetachKBFiles(r.Context(), sess, b)
		})
}

func (s *APIServer) handleCreateKBAssistant(w http.ResponseWriter, r *http.Request) {
	var b api.KBAssistantCreateRequest
	if !s.decode(w, r, &b) {
		return
	}
	req := envelope.Request{ReqID: b.ReqID, ReqCode: b.ReqCode}
	serve(s, w, r, auth.KB, req, capability.MsgAssistantCreationSuccess, capability.CodeAssistantCreationSuccess,
		func(sess *auth.Session) (*api.KBAssistant, error) {
			return s.Capabilities.CreateKBAssistant(r.Context(), sess, b)
		})
}

func (s *APIServer) handleListKBAssistants(w http.ResponseWriter, r *http.Request) {
	req := queryRequest(r)
	kbuid := strings.TrimSpace(r.URL.Query().Get("KBUID"))
	serve(s, w, r, auth.KB, req, capability.MsgGetAssistantsSuccess, capability.CodeGetAssistantsSuccess,
		func(sess *auth.Session) ([]api.KBAssistant, error) {
			return s.Capabilities.ListKBAssistants(r.Context(), sess, kbuid, req)
		})
}

func (s *APIServer) handleUpdateKBAssistant(w http.ResponseWriter, r *http.Request) {
	var b api.KBAssistantUpdateRequest
	if !s.decode(w, r, &b) {
		return
	}
	req := envelope.Request{ReqID: b.ReqID, ReqCode: b.ReqCode}
	serve(s, w, r, auth.KB, req, capability.MsgAssistantUpdateSuccess, capability.CodeAssistantUpdateSuccess,
		func(sess *auth.Session) (*api.KBAssistant, error) {
			return s.Capabilities.UpdateKBAssistant(r.Context(), sess, b)
		})
}

func (s *APIServer) handleDeleteKBAssistant(w http.ResponseWriter, r *http.Request) {
	req := queryRequest(r)
	serve(s, w, r, auth.KB, req, capability.MsgAssistantDeleteSuccess, capability.CodeAssistantDeleteSuccess,
		func(sess *auth.Session) (*api.KBDeleteResponse, error) {
			return s.Capabilities.DeleteKBAssistant(r.Context(), sess, r.PathValue("id"), req)
		})
}

func (s *APIServer) handleKBThread(w http.ResponseWriter, r *http.Request) {
	var b api.KBThreadRequest
	if !s.decode(w, r, &b) {
		return
	}
	req := envelope.Request{ReqID: b.ReqID, ReqCode: b.ReqCode}
	serve(s, w, r, auth.KB, req, capability.MsgKBThreadCreationSuccess, capability.CodeKBThreadCreationSuccess,
		func(sess *auth.Session) (*api.KBThreadResponse, error) {
			return s.Capabilities.KBThread(r.Context(), sess, b)
		})
}

func (s *APIServer) handleKBRunMessage(w http.ResponseWriter, r *http.Request) {
	var b api.KBRunMessageRequest
	if !s.decode(w, r, &b) {
		return
	}
	req := envelope.Request{ReqID: b.ReqID, ReqCode: b.ReqCode}
	serve(s, w, r, auth.KB, req, capability.MsgKBRunMessageSuccess, capability.CodeKBRunMessageSuccess,
		func(sess *auth.Session) (*api.KBRunResponse, error) {
			return s.Capabilities.KBRunMessage(r.Context(), sess, b)
		})
}

func (s *APIServer) handleKBRunStatus(w http.ResponseWriter, r *http.Request) {
	req := queryRequest(r)
	q := r.URL.Query()
	threadID, runID := strings.TrimSpace(q.Get("ThreadId")), strings.TrimSpace(q.Get("RunId"))
	serve(s, w, r, auth.KB, req, capability.MsgKBGetRunStatusSuccess, capability.CodeKBGetRunStatusSuccess,
		func(sess *auth.Session) (*api.KBRunResponse, error) {
			return s.Capabilities.KBRunStatus(r.Context(), sess, threadID, runID, req)
		})
}

func (s *APIServer) handleKBMessages(w http.ResponseWriter, r *http.Request) {
	req := queryRequest(r)
	threadID := strings.TrimSpace(r.URL.Query().Get("ThreadId"))
	serve(s, w, r, auth.KB, req, capability.MsgKBGetMessagesSuccess, capability.CodeKBGetMessagesSuccess,
		func(sess *auth.Session) (*api.KBMessagesResponse, error) {
			return s.Capabilities.KBMessages(r.Context(), sess, threadID, req)
		})
}
