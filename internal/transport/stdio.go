package transport

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"

	"batch-edit-engine/internal/errors"
	"batch-edit-engine/internal/models"
	"batch-edit-engine/internal/service"
)

// StdioHandler handles line-delimited JSON-RPC over standard input/output.
type StdioHandler struct {
	service service.BatchEditService
}

// NewStdioHandler creates a new StdioHandler.
func NewStdioHandler(svc service.BatchEditService) *StdioHandler {
	return &StdioHandler{service: svc}
}

func (h *StdioHandler) writeResponse(w io.Writer, resp models.JSONRPCResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		log.Printf("Error marshaling JSON-RPC response: %v. Original ID: %v", err, resp.ID)
		fallback := models.JSONRPCResponse{
			JSONRPC: "2.0",
			ID:      resp.ID,
			Error:   errors.ToJSONRPCError(errors.NewInternalError("failed to marshal response")),
		}
		data, _ = json.Marshal(fallback)
	}
	if _, err := fmt.Fprintln(w, string(data)); err != nil {
		log.Printf("Error writing JSON-RPC response: %v", err)
	}
}

// Start processes requests from input and writes responses to output until
// EOF or a read error.
func (h *StdioHandler) Start(input io.Reader, output io.Writer) error {
	log.Println("Starting stdio JSON-RPC handler.")
	scanner := bufio.NewScanner(input)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		var req models.JSONRPCRequest
		if err := json.Unmarshal(line, &req); err != nil {
			h.writeResponse(output, models.JSONRPCResponse{
				JSONRPC: "2.0",
				ID:      nil,
				Error:   errors.ToJSONRPCError(errors.NewParseError(fmt.Sprintf("Invalid JSON received: %v", err))),
			})
			continue
		}

		resp := models.JSONRPCResponse{JSONRPC: "2.0", ID: req.ID}
		if req.JSONRPC != "2.0" {
			resp.Error = errors.ToJSONRPCError(errors.NewInvalidRequestError("Invalid JSON-RPC version. Must be '2.0'."))
			h.writeResponse(output, resp)
			continue
		}
		if req.Method == "" {
			resp.Error = errors.ToJSONRPCError(errors.NewInvalidRequestError("Method not specified."))
			h.writeResponse(output, resp)
			continue
		}

		result, errDetail := h.dispatch(req.Method, req.Params)
		if errDetail != nil {
			rpcErr := errors.ToJSONRPCError(errDetail)
			if rpcErr.Data == nil {
				rpcErr.Data = &models.JSONRPCErrorData{}
			}
			rpcErr.Data.Operation = req.Method
			resp.Error = rpcErr
		} else {
			resp.Result = result
		}
		h.writeResponse(output, resp)
	}

	if err := scanner.Err(); err != nil {
		log.Printf("Error reading from stdio: %v", err)
		return err
	}
	log.Println("Stdio JSON-RPC handler finished.")
	return nil
}

func (h *StdioHandler) dispatch(method string, params json.RawMessage) (interface{}, *models.ErrorDetail) {
	switch method {
	case "apply_edits":
		var req models.ApplyEditsRequest
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, errors.NewInvalidParamsError(fmt.Sprintf("Invalid params for apply_edits: %v", err), nil)
		}
		return h.service.ApplyEdits(req)
	case "preview_edits":
		var req models.ApplyEditsRequest
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, errors.NewInvalidParamsError(fmt.Sprintf("Invalid params for preview_edits: %v", err), nil)
		}
		req.DryRun = true
		return h.service.ApplyEdits(req)
	case "read_file":
		var req models.ReadFileRequest
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, errors.NewInvalidParamsError(fmt.Sprintf("Invalid params for read_file: %v", err), nil)
		}
		return h.service.ReadFile(req)
	case "list_files":
		var req models.ListFilesRequest
		if len(params) > 0 && string(params) != "null" {
			if err := json.Unmarshal(params, &req); err != nil {
				return nil, errors.NewInvalidParamsError(fmt.Sprintf("Invalid params for list_files: %v", err), nil)
			}
		}
		return h.service.ListFiles(req)
	case "history_list":
		var req models.HistoryListRequest
		if len(params) > 0 && string(params) != "null" {
			if err := json.Unmarshal(params, &req); err != nil {
				return nil, errors.NewInvalidParamsError(fmt.Sprintf("Invalid params for history_list: %v", err), nil)
			}
		}
		return h.service.HistoryList(req)
	case "history_restore":
		var req models.HistoryRestoreRequest
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, errors.NewInvalidParamsError(fmt.Sprintf("Invalid params for history_restore: %v", err), nil)
		}
		return h.service.HistoryRestore(req)
	default:
		return nil, errors.NewMethodNotFoundError(method)
	}
}
