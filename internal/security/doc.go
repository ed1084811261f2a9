// Package security derives the security posture report exposed by
// authgate.Engine.SecurityReport.
package security
