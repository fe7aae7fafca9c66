// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes mediabin catalog tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/mediabin/internal/models"
	"github.com/starford/mediabin/internal/session"
	"github.com/starford/mediabin/internal/storage"
)

const assetFormatURI = "mediabin://asset-format"

// Server wraps the MCP server with mediabin tools.
type Server struct {
	mcp   *server.MCPServer
	sess  *session.Session
	inbox storage.Provider
}

// New creates a new MCP server with all tools registered. inbox, when
// non-nil, receives media fetched by the fetch_media tool.
func New(sess *session.Session, inbox storage.Provider) *Server {
	s := &Server{sess: sess, inbox: inbox}

	s.mcp = server.NewMCPServer(
		"mediabin",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_assets",
		mcp.WithDescription("List catalogued assets in catalog order as JSON."),
		mcp.WithString("media_type", mcp.Description("Optional filter: video, audio or image")),
	), s.listAssets)

	s.mcp.AddTool(mcp.NewTool("get_asset",
		mcp.WithDescription("Get one asset by id as JSON."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Asset id")),
	), s.getAsset)

	s.mcp.AddTool(mcp.NewTool("import_paths",
		mcp.WithDescription("Import files or directories into the catalog and wait for the report. "+
			"Directories are walked recursively. Numbered image sequences are collapsed into one asset."),
		mcp.WithArray("paths", mcp.Required(), mcp.WithStringItems(), mcp.Description("Absolute file or directory paths")),
		mcp.WithBoolean("quiet", mcp.Description("Do not surface per-file errors to the UI")),
	), s.importPaths)

	s.mcp.AddTool(mcp.NewTool("cancel_import",
		mcp.WithDescription("Cancel the running import and drop queued ones."),
	), s.cancelImport)

	s.mcp.AddTool(mcp.NewTool("set_asset_field",
		mcp.WithDescription("Change the title or tags of an asset. "+
			"Read the asset format first via get_asset_contract or the "+assetFormatURI+" resource."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Asset id")),
		mcp.WithString("field", mcp.Required(), mcp.Description("title or tags")),
		mcp.WithString("value", mcp.Required(), mcp.Description("New value")),
	), s.setAssetField)

	s.mcp.AddTool(mcp.NewTool("delete_asset",
		mcp.WithDescription("Remove an asset from the catalog. The file on disk is not touched."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Asset id")),
	), s.deleteAsset)

	s.mcp.AddTool(mcp.NewTool("resolve_thumbnail",
		mcp.WithDescription("Return the local path of a preview image of an asset."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Asset id")),
		mcp.WithNumber("frame", mcp.Description("1-based frame; defaults to the asset's start frame")),
		mcp.WithBoolean("force", mcp.Description("Regenerate instead of using the cache")),
	), s.resolveThumbnail)

	s.mcp.AddTool(mcp.NewTool("save_project",
		mcp.WithDescription("Write the catalog to the project document."),
	), s.saveProject)

	s.mcp.AddTool(mcp.NewTool("get_asset_contract",
		mcp.WithDescription("Returns the asset JSON format and the rules for editing assets."),
	), s.getAssetContract)

	if inbox != nil {
		s.mcp.AddTool(mcp.NewTool("fetch_media",
			mcp.WithDescription("Download media from an http(s) or base64 data URL into the inbox folder and import it."),
			mcp.WithString("url", mcp.Required(), mcp.Description("http(s) URL or data:<mime>;base64,<data> URI")),
			mcp.WithString("filename", mcp.Description("Optional file name to save as")),
		), s.fetchMedia)
	}

	s.mcp.AddResource(
		mcp.NewResource(assetFormatURI, "Asset Format",
			mcp.WithResourceDescription("JSON shape of catalogued assets and which fields are editable."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readAssetFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) *mcp.CallToolResult {
	out, _ := json.MarshalIndent(v, "", "  ")
	return mcp.NewToolResultText(string(out))
}

func (s *Server) listAssets(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var filter models.MediaType
	if v := req.GetString("media_type", ""); v != "" {
		mt, err := models.ParseMediaType(v)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		filter = mt
	}

	assets, err := s.sess.Assets(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out := make([]models.Asset, 0, len(assets))
	for _, a := range assets {
		if filter == "" || a.MediaType == filter {
			out = append(out, a)
		}
	}
	return jsonResult(out), nil
}

func (s *Server) getAsset(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	a, err := s.sess.Asset(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	return jsonResult(a), nil
}

func (s *Server) importPaths(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	paths := req.GetStringSlice("paths", nil)
	if len(paths) == 0 {
		return mcp.NewToolResultError("paths is required"), nil
	}
	return s.importAndWait(ctx, session.ImportRequest{Paths: paths, Quiet: req.GetBool("quiet", false)})
}

func (s *Server) importAndWait(ctx context.Context, ir session.ImportRequest) (*mcp.CallToolResult, error) {
	job, err := s.sess.Import(ctx, ir)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rep, err := s.sess.Wait(ctx, job.ID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(rep), nil
}

func (s *Server) cancelImport(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	n, err := s.sess.CancelImport(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("cancelled: %d", n)), nil
}

func (s *Server) setAssetField(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	field, err := req.RequireString("field")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	value, err := req.RequireString("value")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.sess.SetField(ctx, id, field, value); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("updated: %s %s", id, field)), nil
}

func (s *Server) deleteAsset(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.sess.Delete(ctx, id); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %s", id)), nil
}

func (s *Server) resolveThumbnail(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var frame *int
	if n := req.GetInt("frame", 0); n > 0 {
		frame = &n
	}
	loc, ok, err := s.sess.Thumbnail(ctx, id, frame, req.GetBool("force", false))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("no thumbnail available for %s", id)), nil
	}
	return mcp.NewToolResultText(loc), nil
}

func (s *Server) saveProject(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.sess.Save(ctx); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("saved"), nil
}

func (s *Server) getAssetContract(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(AssetFormatContract), nil
}

func (s *Server) readAssetFormatResource(context.Context, mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      assetFormatURI,
			MIMEType: "text/markdown",
			Text:     AssetFormatContract,
		},
	}, nil
}
