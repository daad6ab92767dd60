package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

const discordAPI = "https://discord.com/api"

type DiscordUser struct {
	ID         string  `json:"id"`
	Username   string  `json:"username"`
	GlobalName *string `json:"global_name"`
	Avatar     *string `json:"avatar"`
}

type DiscordGuild struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Owner *bool  `json:"owner,omitempty"`
}

// DiscordClient reads the signed-in user's profile and guilds.
type DiscordClient interface {
	User(ctx context.Context, accessToken string) (*DiscordUser, error)
	Guilds(ctx context.Context, accessToken string) ([]DiscordGuild, error)
}

type discordHTTP struct {
	client  *http.Client
	baseURL string
}

func newDiscordHTTP(client *http.Client) *discordHTTP {
	return &discordHTTP{client: client, baseURL: discordAPI}
}

func (d *discordHTTP) get(ctx context.Context, accessToken, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, "GET", d.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("User-Agent", "debitbot/1.0 (+https://github.com/susu3304/debitbot)")
	req.Header.Set("Accept", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("discord API returned status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (d *discordHTTP) User(ctx context.Context, accessToken string) (*DiscordUser, error) {
	var user DiscordUser
	if err := d.get(ctx, accessToken, "/users/@me", &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (d *discordHTTP) Guilds(ctx context.Context, accessToken string) ([]DiscordGuild, error) {
	var guilds []DiscordGuild
	if err := d.get(ctx, accessToken, "/users/@me/guilds", &guilds); err != nil {
		return nil, err
	}
	return guilds, nil
}

func getUsername(user *DiscordUser) string {
	if user.GlobalName != nil && *user.GlobalName != "" {
		return *user.GlobalName
	}
	return user.Username
}
