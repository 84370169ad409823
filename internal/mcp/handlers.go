package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/a3tai/mcp-affidavit/internal/assembly"
	"github.com/a3tai/mcp-affidavit/internal/casefile"
	"github.com/a3tai/mcp-affidavit/internal/exhibit"
)

// fileArg is a file passed to a tool inline or by path
type fileArg struct {
	Name    string `json:"name"`
	Content string `json:"content"`
	Path    string `json:"path"`
}

// toolArgs are the arguments shared by the assembly tools
type toolArgs struct {
	Record   json.RawMessage `json:"record"`
	Exhibits []fileArg       `json:"exhibits"`
	Upload   *fileArg        `json:"upload"`
}

func (s *Server) handleComposeDocx(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	req, _, err := s.parseRequest(request, false)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.service.ComposeDocx(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatComposeResult(result)), nil
}

func (s *Server) handleAssemblePDF(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	req, _, err := s.parseRequest(request, false)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.service.AssemblePDF(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatPDFResult(result)), nil
}

func (s *Server) handleConvertUploaded(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	req, upload, err := s.parseRequest(request, true)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.service.ConvertUploaded(ctx, assembly.ConvertRequest{Request: req, Upload: upload})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatPDFResult(result)), nil
}

func (s *Server) handleServerInfo(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(formatServerInfo(s.service.ServerInfo())), nil
}

// parseRequest decodes the tool arguments and loads every file they name
func (s *Server) parseRequest(request mcp.CallToolRequest, wantUpload bool) (assembly.Request, exhibit.Attachment, error) {
	var args toolArgs
	raw, err := json.Marshal(request.GetArguments())
	if err != nil {
		return assembly.Request{}, exhibit.Attachment{}, fmt.Errorf("invalid arguments: %w", err)
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return assembly.Request{}, exhibit.Attachment{}, fmt.Errorf("invalid arguments: %w", err)
	}

	if len(args.Record) == 0 || string(args.Record) == "null" {
		return assembly.Request{}, exhibit.Attachment{}, errors.New("required argument \"record\" not found")
	}
	record, err := casefile.ParseJSON(recordJSON(args.Record))
	if err != nil {
		return assembly.Request{}, exhibit.Attachment{}, err
	}

	req := assembly.Request{Record: record, Exhibits: make([]exhibit.Attachment, len(args.Exhibits))}
	for i, f := range args.Exhibits {
		a, err := s.loadFile(f, s.service.ReadExhibit)
		if err != nil {
			return assembly.Request{}, exhibit.Attachment{}, fmt.Errorf("exhibit %d: %w", i, err)
		}
		req.Exhibits[i] = a
	}

	var upload exhibit.Attachment
	if wantUpload {
		if args.Upload == nil {
			return assembly.Request{}, exhibit.Attachment{}, errors.New("required argument \"upload\" not found")
		}
		upload, err = s.loadFile(*args.Upload, s.service.ReadUpload)
		if err != nil {
			return assembly.Request{}, exhibit.Attachment{}, fmt.Errorf("upload: %w", err)
		}
	}
	return req, upload, nil
}

// recordJSON accepts the record as an object or as a JSON-encoded string
func recordJSON(raw json.RawMessage) []byte {
	var encoded string
	if err := json.Unmarshal(raw, &encoded); err == nil {
		return []byte(encoded)
	}
	return raw
}

// readFunc loads and checks a file on disk
type readFunc func(path string) (exhibit.Attachment, error)

// loadFile decodes inline base64 content, or resolves a path under the input
// directory and loads it with read
func (s *Server) loadFile(f fileArg, read readFunc) (exhibit.Attachment, error) {
	switch {
	case f.Content != "" && f.Path != "":
		return exhibit.Attachment{}, errors.New("give either content or path, not both")
	case f.Content != "":
		data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(f.Content))
		if err != nil {
			return exhibit.Attachment{}, fmt.Errorf("content is not valid base64: %w", err)
		}
		if f.Name == "" {
			return exhibit.Attachment{}, errors.New("name is required with inline content")
		}
		return s.limit(exhibit.Attachment{Name: f.Name, Data: data})
	case f.Path != "":
		if s.inputs == nil {
			return exhibit.Attachment{}, errors.New("file paths are disabled: no input directory configured")
		}
		path, err := s.inputs.Resolve(f.Path)
		if err != nil {
			return exhibit.Attachment{}, fmt.Errorf("security validation failed: %w", err)
		}
		a, err := read(path)
		if err != nil {
			return exhibit.Attachment{}, err
		}
		if f.Name != "" {
			a.Name = f.Name
		}
		return a, nil
	default:
		return exhibit.Attachment{}, errors.New("content or path is required")
	}
}

func (s *Server) limit(a exhibit.Attachment) (exhibit.Attachment, error) {
	if int64(len(a.Data)) > s.service.MaxFileSize() {
		return exhibit.Attachment{}, fmt.Errorf("%s is %d bytes, limit is %d", a.Name, len(a.Data), s.service.MaxFileSize())
	}
	return a, nil
}
