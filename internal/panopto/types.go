package panopto

import (
	"encoding/xml"
	"fmt"
)

type GroupType string

const (
	GroupTypeInternal GroupType = "Internal"
	GroupTypeExternal GroupType = "External"
)

type Group struct {
	ID                     string    `json:"id"`
	Name                   string    `json:"name"`
	Type                   GroupType `json:"group_type"`
	MembershipProviderName string    `json:"membership_provider_name,omitempty"`
}

type AccessDetails struct {
	SessionGUIDs       []string `json:"session_guids"`
	ViewerFolderGUIDs  []string `json:"viewer_folder_guids,omitempty"`
	CreatorFolderGUIDs []string `json:"creator_folder_guids,omitempty"`
}

type Session struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	FolderName   string `json:"folder_name"`
	ThumbnailURL string `json:"thumbnail_url"`
}

// Requests.

type authInfo struct {
	AuthCode string  `xml:"http://schemas.datacontract.org/2004/07/Panopto.Server.Services.PublicAPI.V40 AuthCode"`
	Password *string `xml:"http://schemas.datacontract.org/2004/07/Panopto.Server.Services.PublicAPI.V40 Password,omitempty"`
	UserKey  string  `xml:"http://schemas.datacontract.org/2004/07/Panopto.Server.Services.PublicAPI.V40 UserKey"`
}

func newAuthInfo(cred Credential) authInfo {
	return authInfo{AuthCode: cred.AuthCode, Password: cred.Password, UserKey: cred.UserKey}
}

type guidArray struct {
	GUIDs []string `xml:"http://schemas.microsoft.com/2003/10/Serialization/Arrays guid"`
}

type getGroupsByNameRequest struct {
	XMLName   xml.Name `xml:"http://tempuri.org/ GetGroupsByName"`
	Auth      authInfo `xml:"http://tempuri.org/ auth"`
	GroupName string   `xml:"http://tempuri.org/ groupName"`
}

type getGroupAccessDetailsRequest struct {
	XMLName xml.Name `xml:"http://tempuri.org/ GetGroupAccessDetails"`
	Auth    authInfo `xml:"http://tempuri.org/ auth"`
	GroupID string   `xml:"http://tempuri.org/ groupId"`
}

type getSessionsByIDRequest struct {
	XMLName    xml.Name  `xml:"http://tempuri.org/ GetSessionsById"`
	Auth       authInfo  `xml:"http://tempuri.org/ auth"`
	SessionIDs guidArray `xml:"http://tempuri.org/ sessionIds"`
}

type getServerVersionRequest struct {
	XMLName xml.Name `xml:"http://tempuri.org/ GetServerVersion"`
}

// Responses. Elements are matched by local name so prefix choices on the
// remote side do not matter.

type guidList struct {
	GUIDs []string `xml:"guid"`
}

// Array members are nillable; Nil picks up xsi:nil under any prefix.

type wireGroup struct {
	Nil                    bool   `xml:"nil,attr"`
	GroupType              string `xml:"GroupType"`
	ID                     string `xml:"Id"`
	MembershipProviderName string `xml:"MembershipProviderName"`
	Name                   string `xml:"Name"`
}

type getGroupsByNameResponse struct {
	XMLName xml.Name `xml:"GetGroupsByNameResponse"`
	Result  *struct {
		Groups []wireGroup `xml:"Group"`
	} `xml:"GetGroupsByNameResult"`
}

type getGroupAccessDetailsResponse struct {
	XMLName xml.Name `xml:"GetGroupAccessDetailsResponse"`
	Result  *struct {
		FoldersWithCreatorAccess guidList `xml:"FoldersWithCreatorAccess"`
		FoldersWithViewerAccess  guidList `xml:"FoldersWithViewerAccess"`
		SessionsWithViewerAccess guidList `xml:"SessionsWithViewerAccess"`
	} `xml:"GetGroupAccessDetailsResult"`
}

type wireSession struct {
	Nil        bool   `xml:"nil,attr"`
	ID         string `xml:"Id"`
	Name       string `xml:"Name"`
	FolderName string `xml:"FolderName"`
	ThumbURL   string `xml:"ThumbUrl"`
}

type getSessionsByIDResponse struct {
	XMLName xml.Name `xml:"GetSessionsByIdResponse"`
	Result  *struct {
		Sessions []wireSession `xml:"Session"`
	} `xml:"GetSessionsByIdResult"`
}

type getServerVersionResponse struct {
	XMLName xml.Name `xml:"GetServerVersionResponse"`
	Result  *string  `xml:"GetServerVersionResult"`
}

func (g wireGroup) validate() (Group, error) {
	if g.ID == "" {
		return Group{}, fmt.Errorf("group %q has no Id", g.Name)
	}
	gt := GroupType(g.GroupType)
	if gt != GroupTypeInternal && gt != GroupTypeExternal {
		return Group{}, fmt.Errorf("group %s has unknown GroupType %q", g.ID, g.GroupType)
	}
	return Group{ID: g.ID, Name: g.Name, Type: gt, MembershipProviderName: g.MembershipProviderName}, nil
}

func (s wireSession) validate() (Session, error) {
	if s.ID == "" {
		return Session{}, fmt.Errorf("session %q has no Id", s.Name)
	}
	return Session{ID: s.ID, Name: s.Name, FolderName: s.FolderName, ThumbnailURL: s.ThumbURL}, nil
}
