package api

// Platform routes, relative to the base URL.
const (
	RouteLoginKey         = "/authenticate/login/key"
	RouteLoginPassword    = "/authenticate/login/password/account_id"
	RouteSignupDefault    = "/authenticate/signup/default"
	RouteSignupPassword   = "/authenticate/signup/password"
	RouteRegisterAPIKey   = "/authenticate/register/api_key"
	RouteCreateModels     = "/persist/models"
	RouteCreateInvocation = "/persist/invocations/by_model_names"
	RouteStatusFlags      = "/persist/status_flags/get"
	RouteAssetLinks       = "/file_pull/assets/links"
	RouteInputLinks       = "/file_pull/inputs/links"
	RouteOutput           = "/retrieve/invocations/outputs"
	RouteHealth           = "/health"
)
