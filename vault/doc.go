// Copyright (c) ToolHub Authors.
// Licensed under the MIT License.

// Package vault derives per-provider credential encrypters and handles
// the full credential lifecycle: encrypt before persistence, decrypt on
// read (cache-first), mask for display, and the merge-on-update rule
// that keeps masked placeholders from overwriting real secrets.
package vault
