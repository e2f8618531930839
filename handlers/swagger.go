package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg *gin.Engine) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Header("Content-Type", "application/json; charset=utf-8")
		c.String(http.StatusOK, swaggerJSON)
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>aldebaran-health API</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "aldebaran-health", "version": "v0.1.0" },
  "components": {
    "securitySchemes": { "bearer": { "type": "http", "scheme": "bearer", "bearerFormat": "JWT" } }
  },
  "paths": {
    "/signup": {
      "post": { "summary": "Register a local account", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"userName":{"type":"string"},"email":{"type":"string"},"password":{"type":"string"}}}}}}, "responses": { "201": { "description": "user created" }, "400": { "description": "invalid input" }, "409": { "description": "email taken" } } }
    },
    "/login": {
      "post": { "summary": "Email/password login", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"email":{"type":"string"},"password":{"type":"string"}}}}}}, "responses": { "200": { "description": "jwtToken, expiresAt, user" }, "401": { "description": "invalid credentials" } } }
    },
    "/auth/google": {
      "post": { "summary": "Exchange a Google ID token for a session token", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"idToken":{"type":"string"}}}}}}, "responses": { "200": { "description": "jwtToken, expiresAt, user" }, "401": { "description": "invalid id token" } } }
    },
    "/api/user": {
      "get": { "summary": "Current user", "security": [{"bearer": []}], "responses": { "200": { "description": "user" }, "401": { "description": "invalid or expired token" } } }
    },
    "/conversation": {
      "get": { "summary": "List own conversations, newest first", "security": [{"bearer": []}], "responses": { "200": { "description": "conversations" } } },
      "post": { "summary": "Start a conversation", "security": [{"bearer": []}], "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"name":{"type":"string"}}}}}}, "responses": { "201": { "description": "conversation" } } }
    },
    "/conversation/search": {
      "get": { "summary": "Search own conversations by name", "security": [{"bearer": []}], "parameters": [{"name":"term","in":"query","required":true,"schema":{"type":"string"}}], "responses": { "200": { "description": "conversations" } } }
    },
    "/conversation/{id}/messages": {
      "get": { "summary": "Transcript, oldest first", "security": [{"bearer": []}], "responses": { "200": { "description": "messages" }, "404": { "description": "unknown conversation" } } },
      "post": { "summary": "Send a message and receive the AI reply", "security": [{"bearer": []}], "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"content":{"type":"string"}}}}}}, "responses": { "201": { "description": "full transcript" }, "400": { "description": "empty content" }, "404": { "description": "unknown conversation" } } }
    },
    "/conversation/{id}/export": {
      "post": { "summary": "Export the transcript to object storage", "security": [{"bearer": []}], "responses": { "200": { "description": "presigned download URL" } } }
    },
    "/conversation/{id}/ws": {
      "get": { "summary": "Websocket chat; token may be passed as ?access_token=", "responses": { "101": { "description": "switching protocols" } } }
    },
    "/admin/conversations": {
      "get": { "summary": "All conversations (ADMIN)", "security": [{"bearer": []}], "responses": { "200": { "description": "conversations" }, "403": { "description": "not an admin" } } }
    },
    "/admin/conversations/search": {
      "get": { "summary": "Search all conversations (ADMIN)", "security": [{"bearer": []}], "responses": { "200": { "description": "conversations" } } }
    },
    "/admin/conversations/{id}": {
      "delete": { "summary": "Delete a conversation and its messages (ADMIN)", "security": [{"bearer": []}], "responses": { "204": { "description": "deleted" } } }
    },
    "/admin/messages": {
      "get": { "summary": "All messages (ADMIN)", "security": [{"bearer": []}], "responses": { "200": { "description": "messages" } } }
    },
    "/api/questions": {
      "get": { "summary": "PSS-10 questionnaire", "responses": { "200": { "description": "questions, response options and score bands" } } }
    },
    "/api/quick-score": {
      "post": { "summary": "Score PSS-10 responses", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"responses":{"type":"array","items":{"type":"integer","minimum":0,"maximum":4}}}}}}}, "responses": { "200": { "description": "total score and stress band" }, "400": { "description": "not ten responses in 0-4" } } }
    },
    "/api/analyze": {
      "post": { "summary": "Score PSS-10 responses with indicators, recommendations and risk", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"responses":{"type":"array","items":{"type":"integer","minimum":0,"maximum":4}},"user_info":{"type":"object"}}}}}}, "responses": { "200": { "description": "analysis" }, "400": { "description": "not ten responses in 0-4" } } }
    },
    "/health": { "get": { "summary": "Liveness check", "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } },
    "/metrics": { "get": { "summary": "Prometheus metrics", "responses": { "200": { "description": "metrics" } } } }
  }
}`
