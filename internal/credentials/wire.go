package credentials

import (
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"crosspost/internal/config"
	"crosspost/internal/models"
)

const (
	googleAuthURL    = "https://accounts.google.com/o/oauth2/auth"
	googleTokenURL   = "https://oauth2.googleapis.com/token"
	linkedInAuthURL  = "https://www.linkedin.com/oauth/v2/authorization"
	linkedInTokenURL = "https://www.linkedin.com/oauth/v2/accessToken"
	twitterAuthURL   = "https://x.com/i/oauth2/authorize"

	// linkedInRefreshLead is the "soon" policy window for LinkedIn tokens.
	linkedInRefreshLead = time.Hour
)

func twitterOAuth(cfg *config.Config) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.Twitter.ClientID,
		ClientSecret: cfg.Twitter.ClientSecret,
		RedirectURL:  cfg.Twitter.RedirectURI,
		Scopes:       []string{"tweet.read", "tweet.write", "users.read", "offline.access"},
		Endpoint: oauth2.Endpoint{
			AuthURL:   twitterAuthURL,
			TokenURL:  cfg.TwitterBaseURL + "/2/oauth2/token",
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
}

func youtubeOAuth(cfg *config.Config) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.YouTube.ClientID,
		ClientSecret: cfg.YouTube.ClientSecret,
		RedirectURL:  cfg.YouTube.RedirectURI,
		Scopes:       []string{"https://www.googleapis.com/auth/youtube.upload"},
		Endpoint: oauth2.Endpoint{
			AuthURL:   googleAuthURL,
			TokenURL:  googleTokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

func linkedInOAuth(cfg *config.Config) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.LinkedIn.ClientID,
		ClientSecret: cfg.LinkedIn.ClientSecret,
		RedirectURL:  cfg.LinkedIn.RedirectURI,
		Scopes:       []string{"w_organization_social", "r_organization_social"},
		Endpoint: oauth2.Endpoint{
			AuthURL:   linkedInAuthURL,
			TokenURL:  linkedInTokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// OptionsFromConfig builds the refresh and extension policies for every
// destination whose OAuth app is configured.
func OptionsFromConfig(cfg *config.Config, client *http.Client) Options {
	refreshers := map[models.Destination]Refresher{}
	if cfg.Twitter.Configured() {
		refreshers[models.DestinationTwitter] = &OAuth2Refresher{Config: twitterOAuth(cfg), Client: client}
	}
	if cfg.YouTube.Configured() {
		refreshers[models.DestinationYouTube] = &OAuth2Refresher{Config: youtubeOAuth(cfg), Client: client}
	}
	if cfg.LinkedIn.Configured() {
		refreshers[models.DestinationLinkedIn] = &OAuth2Refresher{Config: linkedInOAuth(cfg), Client: client}
	}
	if cfg.TikTok.Configured() {
		refreshers[models.DestinationTikTok] = &TikTokRefresher{
			BaseURL:      cfg.TikTokBaseURL,
			ClientKey:    cfg.TikTok.ClientID,
			ClientSecret: cfg.TikTok.ClientSecret,
			Client:       client,
		}
	}

	extenders := map[models.Destination]Refresher{}
	if cfg.Meta.Configured() {
		meta := &MetaExtender{
			BaseURL:   cfg.GraphBaseURL,
			Version:   cfg.GraphVersion,
			AppID:     cfg.Meta.ClientID,
			AppSecret: cfg.Meta.ClientSecret,
			Client:    client,
		}
		extenders[models.DestinationFacebook] = meta
		extenders[models.DestinationInstagram] = meta
	}

	return Options{
		Dir:          cfg.TokenDir,
		WarnLead:     cfg.TokenWarnLead,
		Refreshers:   refreshers,
		RefreshLeads: map[models.Destination]time.Duration{models.DestinationLinkedIn: linkedInRefreshLead},
		Extenders:    extenders,
	}
}

// AuthorizersFromConfig returns the interactive flows that can run with
// the configured OAuth apps.
func AuthorizersFromConfig(cfg *config.Config, client *http.Client) map[models.Destination]Authorizer {
	auth := map[models.Destination]Authorizer{}
	if cfg.Twitter.Configured() {
		auth[models.DestinationTwitter] = &OAuth2Authorizer{
			Destination: models.DestinationTwitter,
			Config:      twitterOAuth(cfg),
			PKCE:        true,
			Client:      client,
		}
	}
	if cfg.YouTube.Configured() {
		auth[models.DestinationYouTube] = &OAuth2Authorizer{
			Destination: models.DestinationYouTube,
			Config:      youtubeOAuth(cfg),
			AuthOptions: []oauth2.AuthCodeOption{oauth2.AccessTypeOffline, oauth2.ApprovalForce},
			Client:      client,
		}
	}
	if cfg.LinkedIn.Configured() {
		auth[models.DestinationLinkedIn] = &OAuth2Authorizer{
			Destination: models.DestinationLinkedIn,
			Config:      linkedInOAuth(cfg),
			Template:    models.Credential{OrganizationID: cfg.LinkedInOrgID},
			Client:      client,
		}
	}
	if cfg.TikTok.Configured() {
		auth[models.DestinationTikTok] = &TikTokAuthorizer{
			BaseURL:      cfg.TikTokBaseURL,
			ClientKey:    cfg.TikTok.ClientID,
			ClientSecret: cfg.TikTok.ClientSecret,
			RedirectURI:  cfg.TikTok.RedirectURI,
			Scopes:       []string{"video.create", "video.list", "user.info.basic"},
			BusinessID:   cfg.TikTokBusinessID,
			Client:       client,
		}
	}
	return auth
}

// SeedsFromConfig returns credentials that can be built from static
// environment values: Meta page tokens and the website application password.
// Tokens given this way carry no expiry until the first extension.
func SeedsFromConfig(cfg *config.Config) []*models.Credential {
	var seeds []*models.Credential
	if cfg.MetaPageToken != "" && cfg.MetaPageID != "" {
		seeds = append(seeds, &models.Credential{
			Destination: models.DestinationFacebook,
			AccessToken: cfg.MetaPageToken,
			PageID:      cfg.MetaPageID,
		})
	}
	igToken := cfg.InstagramToken
	if igToken == "" {
		igToken = cfg.MetaPageToken
	}
	if igToken != "" && cfg.InstagramID != "" {
		seeds = append(seeds, &models.Credential{
			Destination: models.DestinationInstagram,
			AccessToken: igToken,
			InstagramID: cfg.InstagramID,
		})
	}
	if cfg.WebsiteURL != "" && cfg.WebsiteUser != "" && cfg.WebsitePassword != "" {
		seeds = append(seeds, &models.Credential{
			Destination: models.DestinationWebsite,
			AccessToken: cfg.WebsitePassword,
			SiteURL:     cfg.WebsiteURL,
			Username:    cfg.WebsiteUser,
		})
	}
	return seeds
}
