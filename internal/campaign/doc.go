// Package campaign runs drip campaigns: it indexes a campaign's message
// tree, schedules head and follow-up sends as delayed jobs and executes
// those sends against the messaging channel.
package campaign
