package core

import (
	"fmt"
	"strings"
	"time"

	"edupage-client/lib/fault"
)

const (
	Domain             = "edupage.org"
	DefaultLoginServer = "login1"
)

type Endpoint int

const (
	EndpointDashboardGetUser Endpoint = iota + 1
	EndpointDashboardGetClassbook
	EndpointDashboardGcall
	EndpointDashboardSignOnlineLesson
	EndpointTimelineGetData
	EndpointTimelineGetReplies
	EndpointTimelineGetCreatedItems
	EndpointTimelineCreateItem
	EndpointTimelineCreateConfirmation
	EndpointTimelineCreateReply
	EndpointTimelineFlagHomework
	EndpointTimelineUploadAttachment
	EndpointElearningTestData
	EndpointElearningTestResults
	EndpointElearningCardsData
	EndpointGradesData
)

type endpointEntry struct {
	name string
	path string
	// appends the current unix time in ms
	cacheBust string
}

var endpoints = map[Endpoint]endpointEntry{
	EndpointDashboardGetUser:           {name: "dashboard.get-user", path: "/user/?"},
	EndpointDashboardGetClassbook:      {name: "dashboard.get-classbook", path: "/dashboard/eb.php?barNoSkin=1"},
	EndpointDashboardGcall:             {name: "dashboard.gcall", path: "/gcall"},
	EndpointDashboardSignOnlineLesson:  {name: "dashboard.sign-online-lesson", path: "/dashboard/server/onlinelesson.js?__func=getOnlineLessonOpenUrl"},
	EndpointTimelineGetData:            {name: "timeline.get-data", path: "/timeline/?akcia=getData"},
	EndpointTimelineGetReplies:         {name: "timeline.get-replies", path: "/timeline/?akcia=getRepliesItem"},
	EndpointTimelineGetCreatedItems:    {name: "timeline.get-created-items", path: "/timeline/?cmd=created&akcia=getData"},
	EndpointTimelineCreateItem:         {name: "timeline.create-item", path: "/timeline/?akcia=createItem"},
	EndpointTimelineCreateConfirmation: {name: "timeline.create-confirmation", path: "/timeline/?akcia=createConfirmation"},
	EndpointTimelineCreateReply:        {name: "timeline.create-reply", path: "/timeline/?akcia=createReply"},
	EndpointTimelineFlagHomework:       {name: "timeline.flag-homework", path: "/timeline/?akcia=homeworkFlag"},
	EndpointTimelineUploadAttachment:   {name: "timeline.upload-attachment", path: "/timeline/?akcia=uploadAtt"},
	EndpointElearningTestData:          {name: "elearning.test-data", path: "/elearning/?cmd=MaterialPlayer&akcia=getETestData", cacheBust: "ts"},
	EndpointElearningTestResults:       {name: "elearning.test-results", path: "/elearning/?cmd=EtestCreator&akcia=getResultsData"},
	EndpointElearningCardsData:         {name: "elearning.cards-data", path: "/elearning/?cmd=EtestCreator&akcia=getCardsData"},
	EndpointGradesData:                 {name: "grades.data", path: "/znamky/?barNoSkin=1"},
}

func (e Endpoint) String() string {
	entry, ok := endpoints[e]
	if !ok {
		return fmt.Sprintf("endpoint(%d)", int(e))
	}
	return entry.name
}

// OriginURL is the base url of a school's portal, like https://school42.edupage.org.
func OriginURL(origin string) string {
	return fmt.Sprintf("https://%s.%s", origin, Domain)
}

// Resolve turns an endpoint into an absolute url on the given origin. now is only used by
// endpoints that need a cache-busting timestamp.
func Resolve(origin string, endpoint Endpoint, now time.Time) (string, error) {
	entry, ok := endpoints[endpoint]
	if !ok {
		return "", fault.New(fault.KindValidation, "unknown endpoint %d", int(endpoint))
	}
	if origin == "" {
		return "", fault.New(fault.KindConfiguration, "cannot resolve %s: no origin, log in first", entry.name)
	}

	var b strings.Builder
	b.WriteString(OriginURL(origin))
	b.WriteString(entry.path)
	if entry.cacheBust != "" {
		fmt.Fprintf(&b, "&%s=%d", entry.cacheBust, now.UnixMilli())
	}
	return b.String(), nil
}

// ResolveLogin returns the login url. The portal accepts credentials on a shared login server,
// or on a school's own subdomain when the username is only unique within that school.
func ResolveLogin(server string) string {
	if server == "" {
		server = DefaultLoginServer
	}
	return OriginURL(server) + "/login/mauth"
}
