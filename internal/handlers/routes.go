package handlers

import "net/http"

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Users         UserStore
	Tokens        TokenIssuer
	Media         MediaStore
	Likes         LikeStore
	Videos        VideoStore
	Tweets        TweetStore
	Comments      CommentStore
	Playlists     PlaylistStore
	Subscriptions SubscriptionStore
	Stats         StatsProvider
	AuthLimiter   RateLimiter
}

// RegisterRoutes wires HTTP handlers into the provided ServeMux.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := HealthHandler{}
	auth := AuthHandler{Users: deps.Users, Tokens: deps.Tokens, Media: deps.Media, Limiter: deps.AuthLimiter}
	likes := LikeHandler{Likes: deps.Likes}
	videos := VideoHandler{Videos: deps.Videos, Media: deps.Media}
	tweets := TweetHandler{Tweets: deps.Tweets}
	comments := CommentHandler{Comments: deps.Comments}
	playlists := PlaylistHandler{Playlists: deps.Playlists}
	subscriptions := SubscriptionHandler{Subscriptions: deps.Subscriptions}
	dashboard := DashboardHandler{Stats: deps.Stats}

	authed := RequireAuth(deps.Tokens, deps.Users)
	protect := func(h http.HandlerFunc) http.Handler { return authed(h) }

	mux.HandleFunc("GET /healthz", health.Handle)

	mux.HandleFunc("POST /api/v1/users/register", auth.Register)
	mux.HandleFunc("POST /api/v1/users/login", auth.Login)
	mux.HandleFunc("POST /api/v1/users/refresh-token", auth.Refresh)
	mux.Handle("POST /api/v1/users/logout", protect(auth.Logout))
	mux.Handle("POST /api/v1/users/change-password", protect(auth.ChangePassword))
	mux.Handle("GET /api/v1/users/current-user", protect(auth.CurrentUser))

	mux.Handle("POST /api/v1/likes/toggle/video/{videoId}", protect(likes.ToggleVideo))
	mux.Handle("POST /api/v1/likes/toggle/comment/{commentId}", protect(likes.ToggleComment))
	mux.Handle("POST /api/v1/likes/toggle/tweet/{tweetId}", protect(likes.ToggleTweet))
	mux.Handle("GET /api/v1/likes/videos", protect(likes.LikedVideos))

	mux.Handle("POST /api/v1/videos", protect(videos.Publish))
	mux.HandleFunc("GET /api/v1/videos/{videoId}", videos.Get)
	mux.HandleFunc("GET /api/v1/videos/channel/{userId}", videos.ListByChannel)
	mux.Handle("PATCH /api/v1/videos/{videoId}", protect(videos.Update))
	mux.Handle("DELETE /api/v1/videos/{videoId}", protect(videos.Delete))
	mux.Handle("POST /api/v1/videos/{videoId}/publish", protect(videos.TogglePublish))

	mux.Handle("POST /api/v1/tweets", protect(tweets.Create))
	mux.HandleFunc("GET /api/v1/tweets/user/{userId}", tweets.ListByUser)
	mux.Handle("PATCH /api/v1/tweets/{tweetId}", protect(tweets.Update))
	mux.Handle("DELETE /api/v1/tweets/{tweetId}", protect(tweets.Delete))

	mux.Handle("POST /api/v1/comments/video/{videoId}", protect(comments.Add))
	mux.HandleFunc("GET /api/v1/comments/video/{videoId}", comments.ListByVideo)
	mux.Handle("PATCH /api/v1/comments/{commentId}", protect(comments.Update))
	mux.Handle("DELETE /api/v1/comments/{commentId}", protect(comments.Delete))

	mux.Handle("POST /api/v1/playlists", protect(playlists.Create))
	mux.HandleFunc("GET /api/v1/playlists/{playlistId}", playlists.Get)
	mux.HandleFunc("GET /api/v1/playlists/user/{userId}", playlists.ListByUser)
	mux.Handle("POST /api/v1/playlists/{playlistId}/videos/{videoId}", protect(playlists.AddVideo))
	mux.Handle("DELETE /api/v1/playlists/{playlistId}/videos/{videoId}", protect(playlists.RemoveVideo))
	mux.Handle("DELETE /api/v1/playlists/{playlistId}", protect(playlists.Delete))

	mux.Handle("POST /api/v1/subscriptions/toggle/{channelId}", protect(subscriptions.Toggle))
	mux.HandleFunc("GET /api/v1/subscriptions/subscribers/{channelId}", subscriptions.Subscribers)
	mux.HandleFunc("GET /api/v1/subscriptions/channels/{userId}", subscriptions.Channels)

	mux.Handle("GET /api/v1/dashboard/stats", protect(dashboard.ChannelStats))
}
