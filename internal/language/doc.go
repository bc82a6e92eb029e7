// Package language normalizes BCP-47 recognition language codes so the
// strategy's fallback ordering and short-circuit comparisons operate on
// canonical values regardless of how callers spelled them.
package language
