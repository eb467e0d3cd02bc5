package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/standardbeagle/scriptref/internal/indexing"
	"github.com/standardbeagle/scriptref/internal/types"
	"github.com/standardbeagle/scriptref/internal/version"
)

// PathParams is the input of find_references and document_guids
type PathParams struct {
	Path string `json:"path"`
}

// GUIDParams is the input of resolve_guid
type GUIDParams struct {
	GUID string `json:"guid"`
}

// StatusParams is the input of index_status
type StatusParams struct {
	Verify bool `json:"verify,omitempty"`
}

// RebuildParams is the input of rebuild_index
type RebuildParams struct {
	Wait bool `json:"wait,omitempty"`
}

// ReferencesResponse lists the documents that reference one guid
type ReferencesResponse struct {
	Source     string               `json:"source,omitempty"`
	GUID       types.Identifier     `json:"guid"`
	Count      int                  `json:"count"`
	References []indexing.Reference `json:"references"`
	Message    string               `json:"message,omitempty"`
}

// DocumentGUIDsResponse lists the guids one document references
type DocumentGUIDsResponse struct {
	Path  string             `json:"path"`
	Count int                `json:"count"`
	GUIDs []types.Identifier `json:"guids"`
}

// StatusResponse wraps the session status
type StatusResponse struct {
	indexing.Status
	Ready       bool   `json:"ready"`
	Consistent  *bool  `json:"consistent,omitempty"`
	VerifyError string `json:"verifyError,omitempty"`
	Version     string `json:"version"`
	BuildID     string `json:"buildId"`
}

const noDocumentsMessage = "no documents found"

// decodeParams unmarshals tool arguments; absent arguments leave p zero
func decodeParams(req *mcp.CallToolRequest, p interface{}) error {
	if req == nil || req.Params == nil || len(req.Params.Arguments) == 0 {
		return nil
	}
	if err := json.Unmarshal(req.Params.Arguments, p); err != nil {
		return fmt.Errorf("invalid parameters: %w", err)
	}
	return nil
}

func (s *Server) handleFindReferences(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.recoverFromPanic("find_references", func() (*mcp.CallToolResult, error) {
		var p PathParams
		if err := decodeParams(req, &p); err != nil {
			return nil, err
		}
		if strings.TrimSpace(p.Path) == "" {
			return nil, errors.New("path is required")
		}

		q := s.session.Query()
		source := q.ResolvePath(p.Path)
		id, docs, err := q.ReferencesOf(ctx, source)
		if err != nil {
			return nil, err
		}
		return createJSONResponse(s.referencesResponse(source, id, docs))
	})
}

func (s *Server) handleResolveGUID(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.recoverFromPanic("resolve_guid", func() (*mcp.CallToolResult, error) {
		var p GUIDParams
		if err := decodeParams(req, &p); err != nil {
			return nil, err
		}
		id, err := types.ParseIdentifier(strings.TrimSpace(p.GUID))
		if err != nil {
			return nil, err
		}

		docs, err := s.session.Query().DocumentsFor(id)
		if err != nil {
			return nil, err
		}
		return createJSONResponse(s.referencesResponse("", id, docs))
	})
}

func (s *Server) handleDocumentGUIDs(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.recoverFromPanic("document_guids", func() (*mcp.CallToolResult, error) {
		var p PathParams
		if err := decodeParams(req, &p); err != nil {
			return nil, err
		}
		if strings.TrimSpace(p.Path) == "" {
			return nil, errors.New("path is required")
		}

		q := s.session.Query()
		key := types.NewDocumentKey(q.ResolvePath(p.Path))
		ids, err := q.IdentifiersFor(key)
		if err != nil {
			return nil, err
		}
		return createJSONResponse(DocumentGUIDsResponse{
			Path:  string(key),
			Count: len(ids),
			GUIDs: ids,
		})
	})
}

func (s *Server) handleIndexStatus(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.recoverFromPanic("index_status", func() (*mcp.CallToolResult, error) {
		var p StatusParams
		if err := decodeParams(req, &p); err != nil {
			return nil, err
		}
		return createJSONResponse(s.statusResponse(p.Verify))
	})
}

func (s *Server) handleRebuildIndex(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.recoverFromPanic("rebuild_index", func() (*mcp.CallToolResult, error) {
		var p RebuildParams
		if err := decodeParams(req, &p); err != nil {
			return nil, err
		}

		if !p.Wait {
			s.session.RebuildAsync()
			s.diagnosticLogger.Printf("Background rebuild requested")
			return createJSONResponse(map[string]interface{}{
				"started": true,
				"state":   s.session.Coordinator().State().String(),
			})
		}

		if err := s.session.Rebuild(ctx); err != nil {
			return nil, err
		}
		return createJSONResponse(s.statusResponse(false))
	})
}

func (s *Server) referencesResponse(source string, id types.Identifier, docs []types.DocumentKey) ReferencesResponse {
	resp := ReferencesResponse{
		Source:     source,
		GUID:       id,
		Count:      len(docs),
		References: s.session.Query().Present(docs),
	}
	if len(docs) == 0 {
		resp.Message = noDocumentsMessage
	}
	return resp
}

func (s *Server) statusResponse(verify bool) StatusResponse {
	st := s.session.Status()
	resp := StatusResponse{
		Status:  st,
		Ready:   st.Index.State == indexing.StateReady,
		Version: version.Info(),
		BuildID: version.BuildID(),
	}
	if verify {
		ok := true
		if err := s.session.Verify(); err != nil {
			ok = false
			resp.VerifyError = err.Error()
		}
		resp.Consistent = &ok
	}
	return resp
}
