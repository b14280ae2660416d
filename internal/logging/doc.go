// Package logger provides leveled console logging for sealkeeper commands.
//
// Verbosity is controlled by the --verbose and --debug flags on the root
// command group. Prefixes are colorized with fatih/color.
//
//	Logger.Infof()           // Shown with --verbose or --debug
//	Logger.Debugf()          // Shown only with --debug
//	Logger.Warnf()           // Shown with --verbose or --debug
//	Logger.WarnfAlways()     // Always shown
//	Logger.Errorf()          // Shown with --debug
//	Logger.ErrorfAndReturn() // Errorf plus the formatted error
//
// Commands build a Logger in PersistentPreRun:
//
//	Logger = logger.Logger{Verbose: verbose, Debug: debug}
package logger
