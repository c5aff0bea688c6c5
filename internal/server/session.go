package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/rsclarke/aiconnect/internal/api"
	"github.com/rsclarke/aiconnect/internal/auth"
	"github.com/rsclarke/aiconnect/internal/envelope"
	"github.com/rsclarke/aiconnect/internal/logging"
	"github.com/rsclarke/aiconnect/internal/token"
)

const (
	CodeSessionInitSuccess  = "SessionInitSuccess"
	CodeInvalidTenant       = "invalidUAKey"
	CodeInvalidUser         = "invalidUser"
	CodeSessionEndSuccess   = "SessionEndSuccess"
	CodeSessionRenewSuccess = "SessionRenewSuccess"
	CodeSessionRenewFailed  = "SessionRenewFailed"
	CodeVersionInfoFetch    = "VersionInfoFetch"
	CodeEncryptSuccess      = "EncryptSuccess"
	CodeEncryptFailed       = "EncryptFailed"

	MsgSessionInitSuccess  = "Session initialized successfully"
	MsgSessionInitFailed   = "Session initialization failed"
	MsgInvalidTenant       = "Invalid Tenant"
	MsgInvalidUser         = "Invalid User"
	MsgSessionEndSuccess   = "Session ended and token expired successfully"
	MsgSessionRenewSuccess = "Session renewed successfully"
	MsgSessionRenewFailed  = "Session renewal failed"
	MsgVersionFetched      = "Version fetched successfully"
	MsgEncryptSuccess      = "Data encrypted successfully"
	MsgEncryptFailed       = "Data encryption failed"
)

// tenantCodeReserved are the characters that carry meaning in cache keys
// and key patterns.
const tenantCodeReserved = `*?[]\:`

func (s *APIServer) handleSessionInit(w http.ResponseWriter, r *http.Request) {
	var b api.SessionInitRequest
	if !s.decode(w, r, &b) {
		return
	}
	b.ReqID = strings.TrimSpace(b.ReqID)
	b.ReqCode = strings.TrimSpace(b.ReqCode)
	b.XPlatformID = strings.TrimSpace(b.XPlatformID)
	b.XPlatformSID = strings.TrimSpace(b.XPlatformSID)
	b.XPlatformUA = strings.TrimSpace(b.XPlatformUA)
	b.TenantCode = strings.TrimSpace(b.TenantCode)

	req := envelope.Request{ReqID: b.ReqID, ReqCode: b.ReqCode}
	if err := envelope.Required(req,
		"ReqId", b.ReqID,
		"ReqCode", b.ReqCode,
		"XPlatformID", b.XPlatformID,
		"XPlatformSID", b.XPlatformSID,
		"XPlatformUA", b.XPlatformUA,
	); err != nil {
		s.writeError(w, r, err)
		return
	}
	if strings.ContainsAny(b.TenantCode, tenantCodeReserved) {
		s.writeError(w, r, envelope.Invalid("TenantCode contains reserved characters", req))
		return
	}

	res, err := s.initSession(r.Context(), b, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.Logger.Info(MsgSessionInitSuccess,
		logging.ServiceID(b.XPlatformSID),
		logging.Tenant(b.TenantCode),
		logging.ReqID(b.ReqID),
		logging.ReqCode(b.ReqCode),
	)
	writeJSON(w, http.StatusOK, envelope.Success(MsgSessionInitSuccess, CodeSessionInitSuccess,
		api.SessionResponse{SessionID: res.Token, ExpiresIn: res.ExpiresAt.Unix()}, req))
}

// initSession resolves the credential bundle and signs the session token.
// When the platform is the forced platform, XPlatformUA is a directory key
// whose props are sealed here; otherwise it is an already sealed bundle.
func (s *APIServer) initSession(ctx context.Context, b api.SessionInitRequest, req envelope.Request) (token.Result, error) {
	platform, sealed := b.XPlatformID, b.XPlatformUA

	if force := s.Config.ForcePlatform; force != "" && b.XPlatformID == force {
		if s.Directory == nil {
			return token.Result{}, envelope.Fail(http.StatusBadRequest, MsgInvalidTenant, CodeInvalidTenant, req)
		}
		entry, ok := s.Directory.Resolve(b.XPlatformUA)
		if !ok {
			return token.Result{}, envelope.Fail(http.StatusBadRequest, MsgInvalidTenant, CodeInvalidTenant, req)
		}
		enc, err := s.Sealer.Encrypt(string(entry.XPUAProps))
		if err != nil {
			return token.Result{}, envelope.Fail(http.StatusInternalServerError, MsgSessionInitFailed, envelope.CodeSessionInitFailed, req).WithCause(err)
		}
		platform, sealed = entry.AIPlatform, enc
	}

	if s.Sealer.Decrypt(sealed) == "" {
		return token.Result{}, envelope.Fail(http.StatusBadRequest, MsgInvalidUser, CodeInvalidUser, req)
	}

	res, err := s.Tokens.Generate(ctx, token.Payload{
		Platform: platform,
		Services: b.XPlatformSID,
		User:     sealed,
		Tenant:   b.TenantCode,
	})
	if err != nil {
		return token.Result{}, envelope.Fail(http.StatusInternalServerError, MsgSessionInitFailed, envelope.CodeSessionInitFailed, req).WithCause(err)
	}
	return res, nil
}

// sessionRequest reads ReqId and ReqCode from the query string, falling
// back to an optional JSON body.
func (s *APIServer) sessionRequest(w http.ResponseWriter, r *http.Request) (envelope.Request, bool) {
	req := queryRequest(r)
	if req.ReqID != "" || req.ReqCode != "" || r.ContentLength == 0 {
		return req, true
	}
	var b struct {
		ReqID   string `json:"ReqId"`
		ReqCode string `json:"ReqCode"`
	}
	if !s.decode(w, r, &b) {
		return req, false
	}
	return envelope.Request{ReqID: strings.TrimSpace(b.ReqID), ReqCode: strings.TrimSpace(b.ReqCode)}, true
}

func (s *APIServer) handleSessionEnd(w http.ResponseWriter, r *http.Request) {
	req, ok := s.sessionRequest(w, r)
	if !ok {
		return
	}
	raw := strings.TrimSpace(r.Header.Get(auth.HeaderSession))
	if raw == "" {
		s.writeError(w, r, envelope.Fail(http.StatusBadRequest, envelope.MsgMissingToken, envelope.CodeMissingToken, req))
		return
	}

	if _, err := s.Tokens.Verify(r.Context(), raw); err != nil {
		s.writeError(w, r, envelope.Fail(http.StatusUnauthorized, envelope.MsgTokenInvalid, envelope.CodeTokenInvalid, req).WithCause(err))
		return
	}
	if err := s.Tokens.Revoke(r.Context(), raw); err != nil {
		s.writeError(w, r, envelope.Fail(http.StatusUnauthorized, envelope.MsgTokenInvalid, envelope.CodeTokenInvalid, req).WithCause(err))
		return
	}

	s.Logger.Info(MsgSessionEndSuccess, logging.ReqID(req.ReqID))
	writeJSON(w, http.StatusOK, envelope.Success(MsgSessionEndSuccess, CodeSessionEndSuccess, nil, req))
}

func (s *APIServer) handleSessionRenew(w http.ResponseWriter, r *http.Request) {
	req, ok := s.sessionRequest(w, r)
	if !ok {
		return
	}
	raw := strings.TrimSpace(r.Header.Get(auth.HeaderSession))
	if raw == "" {
		s.writeError(w, r, envelope.Fail(http.StatusBadRequest, envelope.MsgMissingToken, envelope.CodeMissingToken, req))
		return
	}

	renewFailed := func(err error) {
		s.writeError(w, r, envelope.Fail(http.StatusUnauthorized, MsgSessionRenewFailed, CodeSessionRenewFailed, req).WithCause(err))
	}

	claims, err := s.Tokens.Verify(r.Context(), raw)
	if err != nil {
		renewFailed(err)
		return
	}
	res, err := s.Tokens.Generate(r.Context(), token.Payload{
		Platform: claims.Platform,
		Services: claims.Services,
		User:     claims.User,
		Tenant:   claims.Tenant,
	})
	if err != nil {
		renewFailed(err)
		return
	}
	if err := s.Tokens.Revoke(r.Context(), raw); err != nil {
		renewFailed(err)
		return
	}

	s.Logger.Info(MsgSessionRenewSuccess, logging.Tenant(claims.Tenant), logging.ReqID(req.ReqID))
	writeJSON(w, http.StatusOK, envelope.Success(MsgSessionRenewSuccess, CodeSessionRenewSuccess,
		api.SessionResponse{SessionID: res.Token, ExpiresIn: res.ExpiresAt.Unix()}, req))
}

func (s *APIServer) handleVersion(w http.ResponseWriter, r *http.Request) {
	v := s.Config.Version
	writeJSON(w, http.StatusOK, envelope.Success(MsgVersionFetched, CodeVersionInfoFetch, api.VersionResponse{
		Version: api.VersionInfo{ReleaseVersion: v.ReleaseVersion, ReleaseDate: v.ReleaseDate, Name: v.Name},
	}, queryRequest(r)))
}

func (s *APIServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, api.HealthResponse{Text: "OK", Status: http.StatusOK})
}

func (s *APIServer) handleEncrypt(w http.ResponseWriter, r *http.Request) {
	var b api.EncryptRequest
	if !s.decode(w, r, &b) {
		return
	}
	req := envelope.Request{ReqID: strings.TrimSpace(b.ReqID), ReqCode: strings.TrimSpace(b.ReqCode)}
	if b.Data == "" {
		s.writeError(w, r, envelope.Fail(http.StatusBadRequest, MsgEncryptFailed, CodeEncryptFailed, req))
		return
	}

	sealed, err := s.Sealer.Encrypt(b.Data)
	if err != nil {
		s.writeError(w, r, envelope.Fail(http.StatusBadRequest, MsgEncryptFailed, CodeEncryptFailed, req).WithCause(err))
		return
	}
	writeJSON(w, http.StatusOK, envelope.Success(MsgEncryptSuccess, CodeEncryptSuccess, api.EncryptResponse{EncryptData: sealed}, req))
}
