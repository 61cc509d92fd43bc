package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/baswilson/memory-engine/internal/memory"
	"go.uber.org/zap"
)

// StatusInvalidInput is sent for every body that fails validation. Clients
// depend on 411 rather than 400.
const StatusInvalidInput = http.StatusLengthRequired

const (
	msgInvalidInput  = "Invalid input"
	msgInternalError = "Intenal server error"
	msgNotFound      = "Memory not found"
	msgDeleted       = "Memory deleted"
)

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

type deleteResponse struct {
	Message string `json:"message"`
	ID      int64  `json:"id"`
}

type embedRequest struct {
	Content *string `json:"content" validate:"required"`
}

type embedResponse struct {
	Model      string    `json:"model"`
	Dimensions int       `json:"dimensions"`
	Embedding  []float32 `json:"embedding"`
}

// action runs a validated request and returns the success status and body.
type action[T any] func(ctx context.Context, req *T) (int, interface{}, error)

// serve parses the body into T, runs fn and writes exactly one response.
func serve[T any](s *Server, w http.ResponseWriter, r *http.Request, operation string, fn action[T]) {
	req, err := memory.Parse[T](r.Body)
	if err != nil {
		s.logger.Debug("Invalid input",
			zap.String("operation", operation),
			zap.String("requestID", GetRequestID(r.Context())),
			zap.Error(err),
		)
		writeJSON(w, StatusInvalidInput, messageResponse{Message: msgInvalidInput})
		return
	}

	status, body, err := run(r.Context(), req, fn)
	if err != nil {
		if errors.Is(err, memory.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, messageResponse{Message: msgNotFound})
			return
		}

		s.logger.Error("Request failed",
			zap.String("operation", operation),
			zap.String("requestID", GetRequestID(r.Context())),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Message: msgInternalError,
			Error:   err.Error(),
		})
		return
	}

	writeJSON(w, status, body)
}

// run invokes fn, turning a panic into an error.
func run[T any](ctx context.Context, req *T, fn action[T]) (status int, body interface{}, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			err = fmt.Errorf("%v", rec)
		}
	}()
	return fn(ctx, req)
}

func (s *Server) handleCreateMemory(w http.ResponseWriter, r *http.Request) {
	serve(s, w, r, "create", func(ctx context.Context, req *memory.CreateRequest) (int, interface{}, error) {
		rec, err := s.memory.Create(ctx, req)
		if err != nil {
			return 0, nil, err
		}
		return http.StatusCreated, rec, nil
	})
}

func (s *Server) handleUpdateMemory(w http.ResponseWriter, r *http.Request) {
	serve(s, w, r, "update", func(ctx context.Context, req *memory.UpdateRequest) (int, interface{}, error) {
		rec, err := s.memory.Update(ctx, req)
		if err != nil {
			return 0, nil, err
		}
		return http.StatusOK, rec, nil
	})
}

func (s *Server) handleDeleteMemory(w http.ResponseWriter, r *http.Request) {
	serve(s, w, r, "delete", func(ctx context.Context, req *memory.DeleteRequest) (int, interface{}, error) {
		if err := s.memory.Delete(ctx, *req.ID, *req.UserID); err != nil {
			return 0, nil, err
		}
		return http.StatusOK, deleteResponse{Message: msgDeleted, ID: *req.ID}, nil
	})
}

func (s *Server) handleGetMemory(w http.ResponseWriter, r *http.Request) {
	serve(s, w, r, "get", func(ctx context.Context, req *memory.GetRequest) (int, interface{}, error) {
		rec, err := s.memory.Get(ctx, *req.ID, req.UserID)
		if err != nil {
			return 0, nil, err
		}
		return http.StatusOK, rec, nil
	})
}

func (s *Server) handleGetUserMemories(w http.ResponseWriter, r *http.Request) {
	serve(s, w, r, "getByUser", func(ctx context.Context, req *memory.GetByUserRequest) (int, interface{}, error) {
		recs, err := s.memory.ListByUser(ctx, *req.UserID)
		if err != nil {
			return 0, nil, err
		}
		return http.StatusOK, recs, nil
	})
}

func (s *Server) handleEmbed(w http.ResponseWriter, r *http.Request) {
	serve(s, w, r, "embed", func(ctx context.Context, req *embedRequest) (int, interface{}, error) {
		emb, err := s.llm.Embed(ctx, *req.Content)
		if err != nil {
			return 0, nil, err
		}
		return http.StatusOK, embedResponse{
			Model:      emb.Model,
			Dimensions: len(emb.Vector),
			Embedding:  emb.Vector,
		}, nil
	})
}
