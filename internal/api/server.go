package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"SwiftyBank/internal/bureau"
	xerrors "SwiftyBank/internal/errors"
	"SwiftyBank/internal/observability/metrics"
	"SwiftyBank/internal/orchestrator"
	"SwiftyBank/internal/session"
	"SwiftyBank/pkg/logger"
)

// Server 负责暴露 REST 接口，供前端驱动对话。
type Server struct {
	addr     string
	engine   *orchestrator.Orchestrator
	sessions session.Store
	bureau   bureau.Provider
}

// NewServer 构造 API 服务实例。
func NewServer(addr string, engine *orchestrator.Orchestrator, sessions session.Store, bureauProvider bureau.Provider) *Server {
	return &Server{addr: addr, engine: engine, sessions: sessions, bureau: bureauProvider}
}

// Start 启动 HTTP 服务，直到上下文取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/sessions", s.handleCreateSession)
	mux.HandleFunc("/api/v1/sessions/", s.handleGetSession)
	mux.HandleFunc("/api/v1/messages", s.handleMessage)
	mux.HandleFunc("/api/v1/cibil", s.handleCIBIL)
	mux.Handle("/metrics", metrics.Handler())

	server := &http.Server{
		Addr:              s.addr,
		Handler:           withContext(ctx, mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

type createSessionRequest struct {
	Mobile     string `json:"mobile"`
	CustomerID string `json:"customer_id"`
}

type createSessionResponse struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// 新会话的开场白。
const welcomeMessage = "Hello! I'm Swifty, your AI Banking Assistant. I can help you with Loans, Accounts, and Payments."

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "仅支持 POST", http.StatusMethodNotAllowed)
		return
	}

	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "请求体解析失败", http.StatusBadRequest)
		return
	}

	sess := session.New(req.Mobile, req.CustomerID)
	sess.Append(session.Message{Sender: "bot", Text: welcomeMessage, AgentType: "Orchestrator"})
	if err := s.sessions.Save(r.Context(), sess); err != nil {
		logger.L().Error("创建会话失败", "error", err)
		http.Error(w, "创建会话失败", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, createSessionResponse{SessionID: sess.ID, Message: welcomeMessage})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "仅支持 GET", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/v1/sessions/")
	if id == "" || strings.Contains(id, "/") {
		http.Error(w, "会话编号不合法", http.StatusBadRequest)
		return
	}

	sess, err := s.sessions.Get(r.Context(), id)
	if err != nil {
		if xerrors.CodeOf(err) == xerrors.CodeNotFound {
			http.Error(w, "会话不存在", http.StatusNotFound)
			return
		}
		logger.L().Error("查询会话失败", "session_id", id, "error", err)
		http.Error(w, "查询会话失败", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

type messageRequest struct {
	SessionID  string `json:"session_id"`
	Mobile     string `json:"mobile"`
	CustomerID string `json:"customer_id"`
	Message    string `json:"message"`
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "仅支持 POST", http.StatusMethodNotAllowed)
		return
	}

	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "请求体解析失败", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		http.Error(w, "消息不能为空", http.StatusBadRequest)
		return
	}

	result, err := s.engine.Handle(r.Context(), req.SessionID, req.Mobile, req.CustomerID, req.Message)
	if err != nil {
		logger.L().Error("处理消息失败", "session_id", req.SessionID, "error", err)
		http.Error(w, "处理消息失败", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleCIBIL(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "仅支持 GET", http.StatusMethodNotAllowed)
		return
	}

	pan := strings.TrimSpace(r.URL.Query().Get("pan"))
	if pan == "" {
		http.Error(w, "缺少 pan 参数", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, bureau.APIRecordFor(s.bureau, pan))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.L().Warn("响应序列化失败", "error", err)
	}
}

// withContext 在服务关闭后拒绝新请求。
func withContext(ctx context.Context, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-ctx.Done():
			http.Error(w, "服务已关闭", http.StatusServiceUnavailable)
			return
		default:
		}
		handler.ServeHTTP(w, r)
	})
}
