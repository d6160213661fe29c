// Package rector runs the Rector source rewriter over a project's PHP sources,
// using the embedded Silverstripe 5 rule set unless a config file is given.
package rector
