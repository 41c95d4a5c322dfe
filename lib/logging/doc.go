// Package logging connects the dragonboat logger facade used throughout
// dSettings to a logrus sink.
//
// Packages declare their logger once:
//
//	var Logger = logger.GetLogger("settings")
//
// and the binary calls InitLoggers during startup. Until then the facade falls
// back to its built-in logger, so libraries embedding dSettings keep working
// without any setup.
package logging
