package playlist

import (
	"context"
	"fmt"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"
)

// Spotify lists playlist tracks through the Spotify Web API using the client
// credentials flow. No user login is involved.
type Spotify struct {
	client   *spotify.Client
	pageSize int
}

// NewSpotify creates a Spotify source. The token is fetched lazily and
// refreshed by the oauth2 transport, so ctx must outlive the source.
func NewSpotify(ctx context.Context, clientID, clientSecret string, pageSize int, opts ...spotify.ClientOption) *Spotify {
	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}

	return newSpotifyWithClient(spotify.New(cfg.Client(ctx), opts...), pageSize)
}

func newSpotifyWithClient(client *spotify.Client, pageSize int) *Spotify {
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 100
	}
	return &Spotify{client: client, pageSize: pageSize}
}

// Tracks pages through the playlist until Spotify reports no next page
func (s *Spotify) Tracks(ctx context.Context, playlistID string) ([]*Track, error) {
	var tracks []*Track
	offset := 0

	for {
		page, err := s.client.GetPlaylistItems(ctx, spotify.ID(playlistID),
			spotify.Limit(s.pageSize), spotify.Offset(offset))
		if err != nil {
			return nil, fmt.Errorf("failed to get playlist items at offset %d: %w", offset, err)
		}

		for i := range page.Items {
			full := page.Items[i].Track.Track
			if full == nil {
				tracks = append(tracks, nil)
				continue
			}

			t := &Track{Title: full.Name}
			for _, artist := range full.Artists {
				t.Artists = append(t.Artists, artist.Name)
			}
			tracks = append(tracks, t)
		}

		if page.Next == "" || len(page.Items) == 0 {
			break
		}
		offset += len(page.Items)
	}

	return tracks, nil
}
