// Copyright 2025-2026 ToolHub Authors. All rights reserved.
// Use of this source code is governed by the project license.

// Package provider holds the runtime representation of an API tool
// provider: its authentication shape, the credential schema derived from
// it, the compiled operation bundles, and the callable tools bound to
// tenant credentials. Controllers are transient, rebuilt from the stored
// record on every read or write path.
package provider
