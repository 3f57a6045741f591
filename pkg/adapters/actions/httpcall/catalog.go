package httpcall

import "net/http"

// Catalog lists the built-in REST actions. Service names key into the
// ACTION_ENDPOINTS configuration map; unconfigured services stay
// registered and fail only when invoked.
func Catalog() []Endpoint {
	return []Endpoint{
		{
			Name:        "sharepoint.get_site_info",
			Service:     "sharepoint",
			Method:      http.MethodGet,
			Path:        "/sites/root",
			Description: "Fetch metadata for the root SharePoint site",
		},
		{
			Name:        "onedrive.list_items",
			Service:     "onedrive",
			Method:      http.MethodGet,
			Path:        "/drive/items",
			Description: "List drive items under a path",
			ParamSchema: `{
				"type": "object",
				"properties": {"path": {"type": "string"}}
			}`,
		},
		{
			Name:        "onedrive.upload_file",
			Service:     "onedrive",
			Method:      http.MethodPost,
			Path:        "/drive/upload",
			Description: "Upload file content to a drive path",
			ParamSchema: `{
				"type": "object",
				"required": ["content"],
				"properties": {
					"path": {"type": "string"},
					"filename": {"type": "string"},
					"content": {"type": "string"}
				}
			}`,
		},
		{
			Name:        "notion.search",
			Service:     "notion",
			Method:      http.MethodPost,
			Path:        "/v1/search",
			Description: "Search Notion pages and databases",
			ParamSchema: `{
				"type": "object",
				"properties": {"query": {"type": "string"}}
			}`,
		},
		{
			Name:        "notion.create_page",
			Service:     "notion",
			Method:      http.MethodPost,
			Path:        "/v1/pages",
			Description: "Create a Notion page",
			ParamSchema: `{
				"type": "object",
				"properties": {
					"title": {"type": "string"},
					"database": {"type": "string"},
					"properties": {"type": "object"}
				}
			}`,
		},
		{
			Name:        "email.list_messages",
			Service:     "email",
			Method:      http.MethodGet,
			Path:        "/messages",
			Description: "List recent mailbox messages",
			ParamSchema: `{
				"type": "object",
				"properties": {"top": {"type": "integer", "minimum": 1, "maximum": 1000}}
			}`,
		},
		{
			Name:        "backup.save",
			Service:     "backup",
			Method:      http.MethodPost,
			Path:        "/snapshots",
			Description: "Persist a consolidated backup snapshot",
		},
		{
			Name:        "googleads.get_campaigns",
			Service:     "googleads",
			Method:      http.MethodGet,
			Path:        "/campaigns",
			Description: "Fetch Google Ads campaign performance",
		},
		{
			Name:        "metaads.list_campaigns",
			Service:     "metaads",
			Method:      http.MethodGet,
			Path:        "/campaigns",
			Description: "Fetch Meta Ads campaign performance",
		},
		{
			Name:        "hubspot.get_deals",
			Service:     "hubspot",
			Method:      http.MethodGet,
			Path:        "/crm/v3/objects/deals",
			Description: "Fetch HubSpot deal pipeline",
		},
		{
			Name:        "wordpress.create_post",
			Service:     "wordpress",
			Method:      http.MethodPost,
			Path:        "/wp-json/wp/v2/posts",
			Description: "Publish a WordPress post",
			ParamSchema: `{
				"type": "object",
				"properties": {
					"title": {"type": "string"},
					"content": {"type": "string"},
					"status": {"type": "string", "enum": ["draft", "publish"]}
				}
			}`,
		},
		{
			Name:        "teams.send_channel_message",
			Service:     "teams",
			Method:      http.MethodPost,
			Path:        "/messages",
			Description: "Post a message to a Teams channel",
			ParamSchema: `{
				"type": "object",
				"required": ["message"],
				"properties": {
					"channel": {"type": "string"},
					"message": {"type": "string", "minLength": 1}
				}
			}`,
		},
	}
}
