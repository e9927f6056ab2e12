// Unbound is a rule-based command authorization engine.
//
// It evaluates submitted commands against an ordered list of regex
// rules, charging credits for executions, queueing human approvals,
// and recording every decision in an append-only audit log.
//
// Usage:
//
//	# Start the server with default configuration
//	unbound run
//
//	# Start with a custom configuration file
//	unbound run --config /etc/unbound/config.yaml
//
//	# Validate a configuration file without starting
//	unbound validate --config config.yaml
//
//	# Seed an admin identity and starter rules
//	unbound seed --config config.yaml
//
//	# Show version information
//	unbound version
package main

func main() {
	Execute()
}
