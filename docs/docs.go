// Package docs registers the OpenAPI description served at /swagger.
// Regenerate with: swag init -g internal/http/router.go -o docs
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/dashboard": {"get": {"operationId": "dashboard", "tags": ["Processes"], "summary": "Home-screen summary", "responses": {"200": {"description": "OK"}}}},
        "/registry/cases/{number}": {"get": {"operationId": "lookupCase", "tags": ["Registry"], "summary": "Look a case up in the registry",
            "parameters": [{"type": "string", "name": "number", "in": "path", "required": true}],
            "responses": {"200": {"description": "OK"}, "400": {"description": "Invalid case number"}, "404": {"description": "Case not found"}, "502": {"description": "Registry unavailable"}}}},
        "/processes": {
            "get": {"operationId": "listProcesses", "tags": ["Processes"], "summary": "List tracked processes", "responses": {"200": {"description": "OK"}, "304": {"description": "Not Modified"}}},
            "post": {"operationId": "trackProcess", "tags": ["Processes"], "summary": "Track a registry case", "responses": {"201": {"description": "Created"}, "200": {"description": "Replayed"}}}
        },
        "/processes/attention": {"get": {"operationId": "listAttention", "tags": ["Processes"], "summary": "Processes that need attention", "responses": {"200": {"description": "OK"}}}},
        "/processes/{id}": {
            "get": {"operationId": "getProcess", "tags": ["Processes"], "summary": "Process detail", "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not found"}}},
            "delete": {"operationId": "deleteProcess", "tags": ["Processes"], "summary": "Stop tracking a process", "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"204": {"description": "No Content"}}}
        },
        "/processes/{id}/deadlines": {"post": {"operationId": "addDeadline", "tags": ["Deadlines"], "summary": "Add a deadline", "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"201": {"description": "Created"}, "400": {"description": "Validation failed"}}}},
        "/processes/{id}/deadlines/draft": {"get": {"operationId": "deadlineDraft", "tags": ["Deadlines"], "summary": "Pre-filled deadline form", "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}, {"type": "string", "name": "dispatch", "in": "query"}], "responses": {"200": {"description": "OK"}}}},
        "/processes/{id}/deadlines/{did}": {"delete": {"operationId": "removeDeadline", "tags": ["Deadlines"], "summary": "Remove a deadline", "responses": {"204": {"description": "No Content"}}}},
        "/processes/{id}/deadlines/{did}/toggle": {"patch": {"operationId": "toggleDeadline", "tags": ["Deadlines"], "summary": "Complete or reopen a deadline", "responses": {"200": {"description": "OK"}}}},
        "/processes/{id}/dispatches/{code}/explain": {"get": {"operationId": "explainDispatch", "tags": ["Processes"], "summary": "Explain a dispatch in plain language", "responses": {"200": {"description": "OK"}}}},
        "/chats": {
            "get": {"operationId": "listChats", "tags": ["Chats"], "summary": "List chats", "responses": {"200": {"description": "OK"}}},
            "post": {"operationId": "startChat", "tags": ["Chats"], "summary": "Start a chat with a specialist", "responses": {"200": {"description": "Existing chat"}, "201": {"description": "New chat"}}}
        },
        "/chats/unread": {"get": {"operationId": "unreadChats", "tags": ["Chats"], "summary": "Count chats with unread replies", "responses": {"200": {"description": "OK"}}}},
        "/chats/{id}": {"get": {"operationId": "getChat", "tags": ["Chats"], "summary": "Chat detail", "responses": {"200": {"description": "OK"}}}},
        "/chats/{id}/messages": {"post": {"operationId": "sendMessage", "tags": ["Chats"], "summary": "Send a message", "responses": {"202": {"description": "Accepted"}}}},
        "/account": {
            "get": {"operationId": "currentAccount", "tags": ["Account"], "summary": "Current account", "responses": {"200": {"description": "OK"}}},
            "delete": {"operationId": "logout", "tags": ["Account"], "summary": "Log out", "responses": {"204": {"description": "No Content"}}}
        },
        "/account/register": {"post": {"operationId": "register", "tags": ["Account"], "summary": "Start a registration", "responses": {"202": {"description": "Accepted"}}}},
        "/account/verify": {"post": {"operationId": "verify", "tags": ["Account"], "summary": "Verify a pending registration", "responses": {"200": {"description": "OK"}}}},
        "/preferences/theme": {
            "get": {"operationId": "getTheme", "tags": ["Preferences"], "summary": "Theme preference", "responses": {"200": {"description": "OK"}}},
            "put": {"operationId": "setTheme", "tags": ["Preferences"], "summary": "Change the theme preference", "responses": {"200": {"description": "OK"}}}
        },
        "/specialists": {"get": {"operationId": "listSpecialists", "tags": ["Catalog"], "summary": "List specialists", "responses": {"200": {"description": "OK"}}}},
        "/articles": {"get": {"operationId": "listArticles", "tags": ["Catalog"], "summary": "List or search articles", "responses": {"200": {"description": "OK"}}}},
        "/articles/{id}": {"get": {"operationId": "getArticle", "tags": ["Catalog"], "summary": "Article detail", "responses": {"200": {"description": "OK"}, "404": {"description": "Not found"}}}}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Trademark Monitor API",
	Description:      "Tracks trademark registration cases, their official dispatches and user deadlines.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
