// Package composer drives the Composer dependency manager through execshell.
//
// Require reports a single package installation attempt as a boolean because
// a rejected constraint is an expected outcome during an upgrade. Update and
// VendorExpose return errors and stream Composer's output to the operator.
package composer
