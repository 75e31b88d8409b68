// Package api exposes the engine over HTTP.
//
// Routes:
//
//	GET    /api/v1/dependencies?theme=flatly@5[&source_map=true]
//	POST   /api/v1/dependencies                {"theme": "...", "definition": {...}}
//	POST   /api/v1/sessions                    {"theme": "..."}   (body optional)
//	GET    /api/v1/sessions/{id}
//	DELETE /api/v1/sessions/{id}
//	PUT    /api/v1/sessions/{id}/theme         {"theme": "..."}
//	GET    /api/v1/sessions/{id}/dependencies
//	GET    /api/v1/sessions/{id}/updates
//	GET    /assets/{dir}/{file}
//	GET    /healthz, /readyz, /metrics
//
// Dependency records whose files live in the artifact store carry /assets
// links. Inline theme definitions may not reference attachment files.
package api
