// Package scenarios runs every flowverify scenario in a real browser against
// the fixture portal.
//
// Each file tests a specific workflow:
//   - workflow_test.go: approval, pending and rejection flows per driver,
//     and failure capture when the portal misbehaves
//
// Chrome-based drivers skip when no Chrome/Chromium is installed; playwright
// runs only when FLOWVERIFY_E2E_PLAYWRIGHT is set.
package scenarios
