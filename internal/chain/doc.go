// Package chain reads log summaries from the ledger by running the chain
// binary's query commands.
//
// The chain binary is an external process: a Runner executes it, a Client
// builds query invocations and negotiates optional flags, and LedgerReader
// decodes the JSON output into ledger records.
//
// Some builds of the binary reject the --node flag on queries. The Client
// tries with --node first and, if the binary reports the flag as unknown,
// remembers that and retries without it.
package chain
