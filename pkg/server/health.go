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
	"fmt"
	"net/http"
	"time"

	"github.com/teradata-labs/pgobserve/pkg/types"
)

type healthResponse struct {
	Status    string          `json:"status"`
	Providers map[string]bool `json:"providers,omitempty"`
}

// handleHealth always answers ok: a dead tool provider degrades answers but
// does not make the service unhealthy.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		resp.Providers = s.health.HealthCheck(ctx)
		cancel()
	}
	writeJSON(w, http.StatusOK, resp)
}

// ValidateProvider performs a preflight round trip to the LLM provider.
// Called during server startup when preflight is requested.
func ValidateProvider(ctx context.Context, llm types.LLMProvider) error {
	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := llm.Chat(checkCtx, []types.Message{types.UserMessage("ping")}, nil)
	if err != nil {
		return fmt.Errorf("LLM provider preflight check failed (%s/%s): %w", llm.Name(), llm.Model(), err)
	}
	return nil
}
