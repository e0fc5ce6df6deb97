package models

import "time"

// ChannelProfile is the public view of a user together with subscription
// aggregates relative to the viewer.
type ChannelProfile struct {
	ID                 string         `json:"id"`
	Username           string         `json:"username"`
	Email              string         `json:"email"`
	FullName           string         `json:"fullName"`
	Avatar             AssetReference `json:"avatar"`
	CoverImage         AssetReference `json:"coverImage"`
	SubscribersCount   int64          `json:"subscribersCount"`
	ChannelsSubscribed int64          `json:"channelsSubscribedToCount"`
	IsSubscribed       bool           `json:"isSubscribed"`
}

// VideoOwner is the owner summary embedded in watch history entries.
type VideoOwner struct {
	ID       string         `json:"id"`
	Username string         `json:"username"`
	FullName string         `json:"fullName"`
	Avatar   AssetReference `json:"avatar"`
}

// WatchedVideo is one watch history entry.
type WatchedVideo struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	VideoFile AssetReference `json:"videoFile"`
	Thumbnail AssetReference `json:"thumbnail"`
	Duration  float64        `json:"duration"`
	Views     int64          `json:"views"`
	Owner     VideoOwner     `json:"owner"`
	CreatedAt time.Time      `json:"createdAt"`
}
