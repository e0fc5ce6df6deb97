package common

// Cookie names carrying the issued credentials for browser clients.
const (
	AccessTokenCookieName  = "accessToken"
	RefreshTokenCookieName = "refreshToken"
)

// AuthorizationHeaderName is the HTTP header carrying a bearer access token.
const AuthorizationHeaderName = "Authorization"

// Asset names used in upload errors and storage keys.
const (
	AssetAvatar     = "avatar"
	AssetCoverImage = "coverImage"
)
