// Package logging builds the zap logger the server and its subsystems share.
//
//	logger, err := logging.New(logging.Config{Level: "info", Service: "sketchgui"})
//	guiLog := logger.Component("gui")
//	guiLog.Info("project selected", zap.String("project", name))
package logging
