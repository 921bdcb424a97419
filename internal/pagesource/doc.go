// Package pagesource supplies the raw HTML of the events listing and of each
// event detail page.
//
// Browser drives headless Chromium through the portal's frameset and log-on
// form. Dir replays pages saved on disk, and Recorder saves every page it
// passes through in the layout Dir reads, so a live run can be replayed
// offline.
package pagesource
