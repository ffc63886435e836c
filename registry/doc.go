// Copyright 2025-2026 ToolHub Authors. All rights reserved.
// Use of this source code is governed by the project license.

// Package registry orchestrates the provider lifecycle: create, update,
// delete, listing, live test previews and remote schema retrieval. It
// composes the schema compiler, the credential vault and the provider
// controller against the record and label stores. All operations are
// tenant-scoped and synchronous; create and update run inside one
// store transaction, label writes happen best-effort after commit.
package registry
