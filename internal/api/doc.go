// Package api provides the billing admin REST API: usage collection
// triggers, raw usage queries and sales-order generation.
//
//	@title						Metering Billing API
//	@version					1.0
//	@description				Tenant usage collection and sales-order generation
//	@BasePath					/api/v1
//	@securityDefinitions.apikey	ApiKeyAuth
//	@in							header
//	@name						X-API-Key
package api
