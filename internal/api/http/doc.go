// Package http exposes the GUI session over a small JSON API.
//
// Routes (registered by the server):
//
//	GET  /api/gui/state        session snapshot
//	GET  /api/gui/document     rendered sandbox document
//	GET  /api/gui/console      sandbox console entries
//	GET  /api/gui/query        XPath over the live document (?xpath=)
//	GET  /api/gui/stats        attempt duration summaries
//	POST /api/gui/connection   inject a control connection {"projectName": "..."}
//	POST /api/gui/reload       restart navigation {"url": "..."}
//	GET  /api/log/level        current log level
//	PUT  /api/log/level        change it {"level": "debug"}
//	GET  /api/projects         project catalog
//	GET  /api/projects/:name   one project
//	GET  /gui/gui-template.html sandbox template
package http
