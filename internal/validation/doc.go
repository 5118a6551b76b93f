// ClashOps - Deck Analysis Cache Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clashops

// Package validation validates API request structs with go-playground/validator.
//
// A single validator instance is shared by all handlers. Besides the built-in
// tags it registers:
//
//   - deck: a comma separated card list with at least one non-blank card
//   - category: a report category name accepted by report.ParseField
//
// Field names in error messages come from the json tag, so clients see the
// same names they sent:
//
//	type analyzeRequest struct {
//	    Deck     string `json:"deck" validate:"required,deck"`
//	    Category string `json:"category" validate:"required,category"`
//	}
//
//	if verr := validation.ValidateStruct(&req); verr != nil {
//	    apiErr := verr.ToAPIError()
//	    ...
//	}
package validation
