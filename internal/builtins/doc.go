// Package builtins provides the plugins the relay registers by default.
//
// # Plugins
//
// Pre-process, in registration order:
//
//   - normalize: trims and lowercases the inbound text, strips a leading
//     bot mention, and keeps the original in Values["original_message"]
//   - dedupe: vetoes a turn whose platform message id was already seen
//     within the dedupe TTL, absorbing webhook retries
//
// Post-process:
//
//   - analysis: scores sentiment and intent, folds them into the running
//     customer profile and publishes it in Values["customer_profile"]
//
// # Registration
//
//	p := pipeline.New(contexts, logger)
//	builtins.Register(p, builtins.Options{DedupeTTL: 10 * time.Minute, Scorer: scorer})
//
// Each plugin stores state only through the context namespace the pipeline
// hands it, which is named after the plugin.
package builtins
