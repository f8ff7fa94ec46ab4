// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

// Package host describes the single machine a deploy targets and the
// on-host paths drydock owns there.
//
// A [Host] carries exactly one authentication method. [Host.Validate]
// rejects descriptors with none or several, so the remote session never
// has to guess which credential the operator meant.
//
// [Layout] is the bit-exact filesystem contract:
//
//	{apps_root}/{app}/.versions/{app}-{version}.bundle
//	{apps_root}/{app}/.versions/{version}/
//	{apps_root}/{app}/current -> {apps_root}/{app}/.versions/{version}/
//	{apps_root}/{app}/.env
package host
