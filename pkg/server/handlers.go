// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teradata-labs/pgobserve/pkg/agent"
	"github.com/teradata-labs/pgobserve/pkg/catalog"
)

// maxBodyBytes bounds a chat request including its history.
const maxBodyBytes = 1 << 20

type chatRequest struct {
	Message        string               `json:"message"`
	Database       string               `json:"database"`
	DBType         string               `json:"db_type"`
	ConversationID string               `json:"conversation_id,omitempty"`
	History        []agent.HistoryEntry `json:"history,omitempty"`
}

type chatResponse struct {
	Response       string                 `json:"response"`
	ConversationID string                 `json:"conversation_id"`
	ToolCalls      []agent.ToolCallRecord `json:"tool_calls"`
}

type databaseItem struct {
	Name string  `json:"name"`
	Job  *string `json:"job"`
}

type databasesResponse struct {
	Databases []databaseItem `json:"databases"`
}

type jobResponse struct {
	Database string  `json:"database"`
	Job      *string `json:"job"`
	Instance *string `json:"instance"`
	Source   string  `json:"source"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "Message cannot be empty")
		return
	}
	if strings.TrimSpace(req.DBType) == "" {
		writeError(w, http.StatusBadRequest, "db_type is required")
		return
	}
	if !s.catalog.Contains(req.Database) {
		writeError(w, http.StatusBadRequest, "Unknown database: "+req.Database)
		return
	}

	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	// The run outlives a client disconnect so the trace and provider state
	// stay consistent.
	ctx := context.WithoutCancel(r.Context())

	result, err := s.runner.RunAgent(ctx, agent.Request{
		Message:        req.Message,
		DatabaseName:   req.Database,
		DatabaseType:   req.DBType,
		ConversationID: conversationID,
		History:        req.History,
	})
	if err != nil {
		s.logger.Error("Agent invocation failed",
			zap.String("conversation_id", conversationID),
			zap.String("database", req.Database),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Agent error: "+err.Error())
		return
	}

	toolCalls := result.ToolCalls
	if toolCalls == nil {
		toolCalls = []agent.ToolCallRecord{}
	}
	writeJSON(w, http.StatusOK, chatResponse{
		Response:       result.Response,
		ConversationID: conversationID,
		ToolCalls:      toolCalls,
	})
}

func (s *Server) handleListDatabases(w http.ResponseWriter, _ *http.Request) {
	dbs := s.catalog.List()
	items := make([]databaseItem, 0, len(dbs))
	for _, db := range dbs {
		items = append(items, databaseItem{Name: db.Name, Job: nullable(db.Job)})
	}
	writeJSON(w, http.StatusOK, databasesResponse{Databases: items})
}

func (s *Server) handleDatabaseJob(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	db, err := s.catalog.Get(name)
	if err != nil {
		if errors.Is(err, catalog.ErrUnknownDatabase) {
			writeError(w, http.StatusNotFound, "Unknown database: "+name)
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var info catalog.JobInfo
	switch {
	case s.jobs != nil:
		info = s.jobs.Resolve(r.Context(), db)
	case db.Job != "":
		info = catalog.JobInfo{Database: db.Name, Job: db.Job, Source: catalog.SourceConfig}
	default:
		info = catalog.JobInfo{Database: db.Name, Source: catalog.SourceNotFound}
	}

	writeJSON(w, http.StatusOK, jobResponse{
		Database: info.Database,
		Job:      nullable(info.Job),
		Instance: nullable(info.Instance),
		Source:   info.Source,
	})
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}
